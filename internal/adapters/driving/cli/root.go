// Package cli implements the docchat command line interface using cobra.
// Commands hold no business logic; they call the driving ports configured
// at startup and format the results.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/docchat-cli/docchat/internal/core/ports/driven"
	"github.com/docchat-cli/docchat/internal/core/ports/driving"
	"github.com/docchat-cli/docchat/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services configured by the composition root before Execute is called.
var (
	ingestor    driving.Ingestor
	retriever   driving.Retriever
	chatSession driving.ChatSession
	configStore driven.ConfigStore
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Ingest a folder of PDFs and chat with their contents",
	Long: `docchat keeps a local folder of PDF documents synchronised with a
searchable store and answers questions about them with cited passages.

Run "docchat ingest" to index your documents, then "docchat chat" to
ask questions or "docchat search" for direct passage lookup.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging to stderr")
}

// Services bundles the ports the commands depend on.
type Services struct {
	Ingestor  driving.Ingestor
	Retriever driving.Retriever
	Chat      driving.ChatSession
	Config    driven.ConfigStore
}

// Configure installs the services the commands call. Nil entries leave
// the corresponding commands reporting that they are not configured.
func Configure(s Services) {
	ingestor = s.Ingestor
	retriever = s.Retriever
	chatSession = s.Chat
	configStore = s.Config
}

// SetVersion overrides the reported version string.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
