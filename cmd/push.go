package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stoneage-light/stoneage/internal/utils"
	"github.com/stoneage-light/stoneage/pkg/notify"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push notification tooling",
}

// pushSimulateCmd drives the notification flow against an in-memory host:
// the payload is pushed, then the resulting notification is clicked.
var pushSimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate a push and a click on its notification",
	RunE: func(cmd *cobra.Command, _ []string) error {
		payloadPath, _ := cmd.Flags().GetString("payload")
		windowURLs, _ := cmd.Flags().GetStringSlice("window")
		action, _ := cmd.Flags().GetString("action")
		noClick, _ := cmd.Flags().GetBool("no-click")

		data, err := os.ReadFile(payloadPath)
		if err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}

		cfg := notify.Config{
			Origin:      viper.GetString("push.origin"),
			BasePath:    viper.GetString("push.base"),
			DefaultURL:  viper.GetString("push.defaulturl"),
			DefaultIcon: viper.GetString("push.icon"),
		}

		windows := make([]*notify.MemoryWindow, 0, len(windowURLs))
		clients := make([]notify.Client, 0, len(windowURLs))
		for _, u := range windowURLs {
			w := notify.NewMemoryWindow(u)
			windows = append(windows, w)
			clients = append(clients, w)
		}
		host := notify.NewMemoryHost(clients...)
		worker := notify.NewWorker(cfg, host, host, utils.Component("push"))

		ctx := context.Background()
		pushEv := &notify.PushEvent{Extendable: notify.NewExtendable(ctx), Data: data}
		worker.OnPush(pushEv)
		if err := pushEv.Wait(); err != nil {
			return err
		}

		visible := host.Visible()
		if len(visible) == 0 {
			fmt.Println("no notification shown")
			return nil
		}
		n := visible[len(visible)-1]
		fmt.Printf("shown: tag=%s title=%q body=%q icon=%s\n", n.Options.Tag, n.Title, n.Options.Body, n.Options.Icon)
		if noClick {
			return nil
		}

		clickEv := &notify.NotificationEvent{Extendable: notify.NewExtendable(ctx), Notification: n, Action: action}
		worker.OnNotificationClick(clickEv)
		if err := clickEv.Wait(); err != nil {
			return err
		}

		routed := false
		for _, w := range windows {
			if w.Focused {
				fmt.Printf("focused: %s\n", w.URL())
				routed = true
			}
		}
		for _, u := range host.Opened() {
			fmt.Printf("opened: %s\n", u)
			routed = true
		}
		if !routed {
			fmt.Println("closed without routing")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
	pushCmd.AddCommand(pushSimulateCmd)

	pushSimulateCmd.Flags().String("payload", "", "JSON file holding the push payload")
	pushSimulateCmd.Flags().StringSlice("window", nil, "URL of an open app window (repeatable, in enumeration order)")
	pushSimulateCmd.Flags().String("action", "", "Notification action to click (open, close; empty clicks the body)")
	pushSimulateCmd.Flags().Bool("no-click", false, "Only push, do not click the notification")
	pushSimulateCmd.MarkFlagRequired("payload")
}
