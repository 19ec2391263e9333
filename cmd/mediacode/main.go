// mediacode is a small operator tool for inspecting media descriptor
// strings: decode prints the JSON form of a media code, derive prints the
// chunk names an asset's segments are stored under.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"vodvault/internal/chunker"
	"vodvault/internal/mediacode"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage:
  mediacode decode <media-code>
  mediacode derive <media-code>     (requires MEDIA_SECRET_KEY)
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) != 3 {
		usage()
	}
	cmd, code := os.Args[1], os.Args[2]

	desc, err := mediacode.Decode(code)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode: %v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "decode":
		out, err := json.MarshalIndent(desc, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	case "derive":
		secret := os.Getenv("MEDIA_SECRET_KEY")
		if secret == "" {
			fmt.Fprintln(os.Stderr, "MEDIA_SECRET_KEY is not set")
			os.Exit(1)
		}
		for i := 0; i < desc.SegmentCount; i++ {
			fmt.Println(chunker.ChunkName([]byte(secret), desc.ChunkCode, i))
		}
	default:
		usage()
	}
}
