package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/chunkdex/configs"
	"github.com/Aman-CERP/chunkdex/internal/config"
	"github.com/Aman-CERP/chunkdex/internal/output"
	"github.com/Aman-CERP/chunkdex/pkg/version"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a chunkdex index in this project",
		Long: `Initialize chunkdex for the current project.

This command:
1. Creates the .chunkdex/ data directory
2. Generates a .chunkdex.yaml configuration template
3. Adds .chunkdex/ to .gitignore

The index itself is built by 'chunkdex ingest'.`,
		Example: `  # Initialize in the current project
  chunkdex init

  # Overwrite an existing .chunkdex.yaml
  chunkdex init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	out.Statusf("", "chunkdex %s - initializing", version.Version)

	root, err := resolveIndexRoot()
	if err != nil {
		return err
	}
	out.Statusf("", "Project: %s", root)

	dataDir, err := resolveDataDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dataDir, err)
	}

	if err := writeProjectConfig(out, root, force); err != nil {
		return err
	}

	if added, err := ensureGitignore(root); err != nil {
		out.Warningf("Could not update .gitignore: %v", err)
	} else if added {
		out.Statusf("", "Added %s/ to .gitignore", config.DataDirName)
	}

	out.Newline()
	out.Success("Initialization complete")
	out.Status("", "Next: chunkdex ingest documents.jsonl")

	if !config.UserConfigExists() {
		out.Newline()
		out.Status("", "For machine-wide settings (log level, cache sizes):")
		out.Status("", "  run 'chunkdex config init'")
	}

	return nil
}

// writeProjectConfig writes the embedded .chunkdex.yaml template unless a
// project config already exists.
func writeProjectConfig(out *output.Writer, root string, force bool) error {
	yamlPath := filepath.Join(root, ".chunkdex.yaml")
	ymlPath := filepath.Join(root, ".chunkdex.yml")

	if !force {
		if fileExists(yamlPath) {
			out.Status("", "Existing .chunkdex.yaml preserved")
			return nil
		}
		if fileExists(ymlPath) {
			out.Status("", "Existing .chunkdex.yml found, skipping template")
			return nil
		}
	}

	if err := os.WriteFile(yamlPath, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write .chunkdex.yaml: %w", err)
	}
	out.Statusf("", "Created .chunkdex.yaml (optional project configuration)")
	return nil
}

// hasChunkdexIgnore reports whether .gitignore already covers the data
// directory, in any of its spelling variants.
func hasChunkdexIgnore(content string) bool {
	patterns := []string{
		config.DataDirName,
		config.DataDirName + "/",
		"/" + config.DataDirName,
		"/" + config.DataDirName + "/",
	}
	for _, line := range bytes.Split([]byte(content), []byte("\n")) {
		trimmed := string(bytes.TrimSpace(line))
		if trimmed == "" || trimmed[0] == '#' {
			continue
		}
		for _, pattern := range patterns {
			if trimmed == pattern {
				return true
			}
		}
	}
	return false
}

// ensureGitignore adds the data directory to .gitignore if not present.
// Returns (true, nil) if added, (false, nil) if already present.
func ensureGitignore(root string) (bool, error) {
	gitignorePath := filepath.Join(root, ".gitignore")

	content, err := os.ReadFile(gitignorePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("reading .gitignore: %w", err)
	}

	if hasChunkdexIgnore(string(content)) {
		return false, nil
	}

	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, '\n')
	}
	entry := fmt.Sprintf("# chunkdex index data (auto-generated)\n%s/\n", config.DataDirName)
	if len(content) > 0 {
		entry = "\n" + entry
	}
	content = append(content, []byte(entry)...)

	if err := os.WriteFile(gitignorePath, content, 0o644); err != nil {
		return false, fmt.Errorf("writing .gitignore: %w", err)
	}
	return true, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
