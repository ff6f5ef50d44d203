package cli

import (
	"fmt"
	"log"
	"os"
	"os/exec"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// The desktop client runs this backend as a background OS service; these
// commands register, control, and inspect that service.

var (
	installCmd = &cobra.Command{
		Use:   "install",
		Short: "Install the backend as a background service",
		Run:   runInstall,
	}

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the backend service",
		Run:   runStart,
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop the backend service",
		Run:   runStop,
	}

	uninstallCmd = &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall the backend service",
		Run:   runUninstall,
	}

	logsCmd = &cobra.Command{
		Use:   "logs",
		Short: "Tail the service logs",
		Run:   runLogs,
	}
)

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(serviceRunCmd)
}

type program struct{}

func (p *program) Start(s service.Service) error {
	// Start must not block; the server runs on its own goroutine.
	go func() {
		if err := setupServiceLogging(); err != nil {
			log.Printf("Failed to set up file logging: %v", err)
		}
		if err := runServe(); err != nil {
			log.Printf("Backend exited with error: %v", err)
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	log.Println("Service stopping...")
	return nil
}

func getServiceConfig() *service.Config {
	ex, err := os.Executable()
	if err != nil {
		log.Fatal(err)
	}
	return &service.Config{
		Name:        "yt-studio-backend",
		DisplayName: "YT Studio Backend",
		Description: "Local backend converting youtube URLs into transcripts, hooks, and drafts.",
		Executable:  ex,
		Arguments:   []string{"service-run"},
	}
}

// serviceRunCmd is the hidden entry point the OS service manager invokes.
var serviceRunCmd = &cobra.Command{
	Use:    "service-run",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		if err := setupServiceLogging(); err != nil {
			log.Printf("Failed to set up file logging: %v", err)
		}
		s, err := service.New(&program{}, getServiceConfig())
		if err != nil {
			log.Fatalf("Failed to create service: %v", err)
		}
		if err := s.Run(); err != nil {
			log.Fatalf("Service failed to run: %v", err)
		}
	},
}

func runInstall(cmd *cobra.Command, args []string) {
	s, err := service.New(&program{}, getServiceConfig())
	if err != nil {
		log.Fatal(err)
	}
	if err = s.Install(); err != nil {
		log.Fatalf("Failed to install service: %v", err)
	}
	fmt.Println("Service installed successfully.")
}

func runStart(cmd *cobra.Command, args []string) {
	s, err := service.New(&program{}, getServiceConfig())
	if err != nil {
		log.Fatal(err)
	}
	if err = s.Start(); err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}
	fmt.Println("Service started.")
}

func runStop(cmd *cobra.Command, args []string) {
	s, err := service.New(&program{}, getServiceConfig())
	if err != nil {
		log.Fatal(err)
	}
	if err = s.Stop(); err != nil {
		log.Fatalf("Failed to stop service: %v", err)
	}
	fmt.Println("Service stopped.")
}

func runUninstall(cmd *cobra.Command, args []string) {
	s, err := service.New(&program{}, getServiceConfig())
	if err != nil {
		log.Fatal(err)
	}
	if err = s.Uninstall(); err != nil {
		log.Fatalf("Failed to uninstall service: %v", err)
	}
	fmt.Println("Service uninstalled.")
}

func getLogFilePath() string {
	return "/tmp/yt-studio-backend.log"
}

func setupServiceLogging() error {
	f, err := os.OpenFile(getLogFilePath(), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	log.SetOutput(f)
	return nil
}

func runLogs(cmd *cobra.Command, args []string) {
	logFile := getLogFilePath()
	fmt.Printf("Tailing logs from %s...\n", logFile)

	c := exec.Command("tail", "-f", logFile)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		fmt.Printf("Error tailing logs: %v\n", err)
	}
}
