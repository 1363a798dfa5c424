package main

import (
	"context"
	"fmt"
	"os"

	"github.com/samvad-hq/samvad-feign-proxy/internal/sample/httpbin"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/registry"
)

func main() {
	if err := newRootCmd(catalog()).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "feignproxy failed: %v\n", err)
		os.Exit(1)
	}
}

// catalog lists every client contract compiled into the binary.
func catalog() *registry.Catalog {
	cat := registry.NewCatalog()
	httpbin.Declare(cat)
	return cat
}
