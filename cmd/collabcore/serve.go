package cmd

import (
	"log"
	"net/http"

	"github.com/collabcore/collabcore/internal/config"
	"github.com/collabcore/collabcore/internal/core"
	"github.com/collabcore/collabcore/internal/mcpfront"
	"github.com/collabcore/collabcore/internal/transport"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var (
	serveConfigFile string
	serveAddr       string
	serveMCP        bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the core, HTTP/WebSocket front door, and optionally the MCP front door",
	Run: func(cmd *cobra.Command, args []string) {
		proj, err := config.Load(serveConfigFile)
		if err != nil {
			log.Fatalf("collabcore: loading config: %v", err)
		}
		if err := core.EnsureDirectories(proj.BaseDir, proj.CodeDir, proj.BackupDir, proj.ExecDir, proj.TmpDir); err != nil {
			log.Fatalf("collabcore: preparing directories: %v", err)
		}

		c, err := core.New(proj.CodeDir, core.Config{
			Scheduler: proj.SchedulerConfig(),
			QueueSize: 256,
			TmpDir:    proj.TmpDir,
			Name:      proj.Name,
		})
		if err != nil {
			log.Fatalf("collabcore: booting core: %v", err)
		}
		c.Start()
		defer func() { c.Stop(); c.Wait() }()

		srv := transport.NewServer(c, log.Default())

		if serveMCP {
			mcpServer := server.NewMCPServer(proj.Name, "v0.1.0", server.WithToolCapabilities(false))
			if err := mcpfront.RegisterAll(mcpServer, mcpfront.Config{Core: c}); err != nil {
				log.Fatalf("collabcore: registering MCP tools: %v", err)
			}
			go func() {
				if err := server.ServeStdio(mcpServer); err != nil {
					log.Printf("collabcore: MCP server stopped: %v", err)
				}
			}()
		}

		log.Printf("collabcore: listening on %s for project %q", serveAddr, proj.Name)
		if err := http.ListenAndServe(serveAddr, srv.Handler()); err != nil {
			log.Fatalf("collabcore: http server: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigFile, "config", "c", "collabcore.yaml", "path to the project configuration file")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on for the HTTP/WebSocket front door")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "also run the MCP front door over stdio")
	rootCmd.AddCommand(serveCmd)
}
