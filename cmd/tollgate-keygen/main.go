// tollgate-keygen generates identity key sets for use with the
// tollgate ledger and prints them as JSON.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/tollgated/tollgate/pkg/identity"
)

type keyOutput struct {
	Identity string `json:"identity"`
	SeedB64  string `json:"seedB64"`
}

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "tollgate-keygen: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	count := flag.Int("n", 2, "number of key sets to generate")
	flag.Parse()

	keys := make([]keyOutput, 0, *count)
	for i := 0; i < *count; i++ {
		kp, err := identity.NewKeypair()
		if err != nil {
			return fmt.Errorf("generate keypair: %w", err)
		}
		keys = append(keys, keyOutput{
			Identity: kp.Identity().Hex(),
			SeedB64:  base64.StdEncoding.EncodeToString(kp.Seed()),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(keys)
}
