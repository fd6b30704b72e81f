// Command tiledextract reduces regions of a zarr array, reading it one
// chunk-aligned tile at a time.
package main

import (
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
