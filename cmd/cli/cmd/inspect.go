package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/class-verify/internal/sharedcache"
	"github.com/class-verify/internal/snippet"
	"github.com/class-verify/pkg/compression"
)

var (
	// Inspect command flags
	inspectFile  string
	inspectClass string
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Decode a serialized snippet buffer",
	Long: `Decode a serialized snippet buffer and print its relationship pairs.

The buffer comes either from a file (compressed buffers are detected and
decompressed automatically) or from the configured shared cache, looked up
by class name.`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&inspectFile, "input", "i", "", "Serialized snippet buffer file")
	inspectCmd.Flags().StringVar(&inspectClass, "class", "", "Class name to look up in the shared cache")
	inspectCmd.MarkFlagsOneRequired("input", "class")
	inspectCmd.MarkFlagsMutuallyExclusive("input", "class")
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := loadSnippetBuffer(cmd)
	if err != nil {
		return err
	}

	reader, err := snippet.NewReader(data)
	if err != nil {
		return fmt.Errorf("failed to decode snippet buffer: %w", err)
	}

	fmt.Printf("%d snippet(s), %d bytes\n", reader.Count(), len(data))
	for i := 0; i < reader.Count(); i++ {
		childName, parentName, err := reader.Pair(i)
		if err != nil {
			return err
		}
		fmt.Printf("  [%d] %s -> %s\n", i, childName, parentName)
	}
	return nil
}

func loadSnippetBuffer(cmd *cobra.Command) ([]byte, error) {
	if inspectFile != "" {
		raw, err := os.ReadFile(inspectFile)
		if err != nil {
			return nil, err
		}
		return compression.AutoDecompress(raw)
	}

	conf := GetConfig()
	cache, err := sharedcache.NewCache(&conf.Cache, false)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize shared cache: %w", err)
	}
	defer cache.Close()

	data, found, err := cache.Find(cmd.Context(), inspectClass)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("no cached snippets for class %s", inspectClass)
	}
	return data, nil
}
