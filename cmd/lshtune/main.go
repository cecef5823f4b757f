// Command lshtune builds an LSH index over a synthetic Gaussian data set and
// tunes its probe count against exact nearest neighbors.
//
//	lshtune params --points 100000 --dim 128 --format yaml > params.yaml
//	lshtune tune --params params.yaml --queries 500 --target 0.9
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
