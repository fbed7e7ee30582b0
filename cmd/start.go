package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quillmind/governd/pkg/runtime"
)

var (
	catalogPath    string
	dataDir        string
	httpPort       int32
	sampleInterval time.Duration
	detectInterval time.Duration
	reportSchedule string
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start governd",
	Long:  ``,
	Run: func(cmd *cobra.Command, args []string) {
		rt := runtime.New(runtime.Config{
			CatalogPath:    viper.GetString("catalog"),
			DataDir:        viper.GetString("data-dir"),
			Port:           int32(viper.GetInt("port")),
			Version:        rootCmd.Version,
			SampleInterval: viper.GetDuration("sample-interval"),
			DetectInterval: viper.GetDuration("detect-interval"),
			ReportSchedule: viper.GetString("report-schedule"),
		})

		ctx, cancel := context.WithCancel(context.Background())
		errc := make(chan error)
		go func() {
			errc <- func() error {
				c := make(chan os.Signal, 1)
				signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
				return fmt.Errorf("%s", <-c)
			}()
		}()

		go func() {
			if err := rt.Start(ctx); err != nil {
				log.Error(err)
			}
		}()

		// surface critical findings as they happen
		go func() {
			for f := range rt.Alerts.SubscribeCritical() {
				log.Warnf("CRITICAL: %s", f.Message)
			}
		}()

		err := <-errc
		cancel()
		rt.Cleanup()
		log.Print(err.Error())
	},
}

func init() {
	startCmd.Flags().Int32VarP(&httpPort, "port", "p", 8013, "Port to listen on")
	startCmd.Flags().StringVarP(&catalogPath, "catalog", "f", "", "Path to the flag catalog file")
	startCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "", "Directory for the persistence store (empty = in-memory)")
	startCmd.Flags().DurationVar(&sampleInterval, "sample-interval", 10*time.Second, "Snapshot sampling cadence")
	startCmd.Flags().DurationVar(&detectInterval, "detect-interval", 30*time.Second, "Leak detection cadence")
	startCmd.Flags().StringVar(&reportSchedule, "report-schedule", "@hourly", "Cron schedule for automatic QA reports")
	_ = viper.BindPFlags(startCmd.Flags())
	rootCmd.AddCommand(startCmd)
}
