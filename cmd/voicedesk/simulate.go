package main

import (
	"bufio"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/creastat/voicedesk/dialogue"
	"github.com/creastat/voicedesk/logging"
)

func newSimulateCmd() *cobra.Command {
	var (
		caller     string
		confidence float64
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Talk to the receptionist from the terminal",
		Long:  "Reads one utterance per line from stdin and prints the spoken reply. Sessions are kept in memory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Session.Store = "memory"
			logger := logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return a.router.Run(ctx)
			})
			eg.Go(func() error {
				defer cancel()
				select {
				case <-a.router.Running():
				case <-ctx.Done():
					return nil
				}
				return converse(ctx, cmd, a.desk, caller, confidence)
			})
			return eg.Wait()
		},
	}
	cmd.Flags().StringVar(&caller, "from", "+15550100", "Caller id presented to the line")
	cmd.Flags().Float64Var(&confidence, "confidence", 0.9, "Recognizer confidence attached to every utterance")
	return cmd
}

func converse(ctx context.Context, cmd *cobra.Command, desk *dialogue.Orchestrator, caller string, confidence float64) error {
	out := cmd.OutOrStdout()
	callID := "SIM" + uuid.NewString()

	reply, err := desk.Welcome(ctx, callID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "< %s\n", reply.Text())

	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			fmt.Fprintln(out)
			return desk.EndCall(ctx, callID, "completed")
		}
		reply, err = desk.HandleTurn(ctx, dialogue.Turn{
			CallID:     callID,
			CallerID:   caller,
			Utterance:  in.Text(),
			Confidence: confidence,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "< %s\n", reply.Text())
		if reply.Hangup {
			fmt.Fprintln(out, "[call ended]")
			return nil
		}
	}
}
