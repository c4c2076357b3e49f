// coursekb-index is the offline pipeline CLI. It turns course documentation
// and scraped forum threads into embedded points in the vector store, one
// resumable stage at a time: chunk -> embed -> upload.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coursekb/coursekb/internal/config"
	logpkg "github.com/coursekb/coursekb/internal/logger"
	"github.com/coursekb/coursekb/internal/version"
)

var (
	docsDir     string
	siteBaseURL string
	chunksPath  string
	threadsPath string
	vectorsPath string
)

var rootCmd = &cobra.Command{
	Use:   "coursekb-index",
	Short: "Offline indexing pipeline for the course knowledge base",
	Long: `Runs the batch pipeline that feeds the Q&A service: split course
documentation into chunks, embed chunks and forum posts, and upload the
vectors to the store. Each stage writes a manifest so the next stage (or a
re-run) can pick up from it.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("coursekb-index version %s (%s)\n", version.Version, version.Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&chunksPath, "chunks", "chunks.json", "chunk manifest path")
	rootCmd.PersistentFlags().StringVar(&threadsPath, "threads", "threads.json", "thread manifest path")
	rootCmd.PersistentFlags().StringVar(&vectorsPath, "vectors", "vectors.json", "vector manifest path")

	rootCmd.AddCommand(versionCmd)
}

// setup loads .env, the YAML config, and builds the logger. Shared by every
// pipeline command.
func setup() (config.Config, *zap.Logger, error) {
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
