package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/turtacn/clusterkeys/internal/application/dto"
	"github.com/turtacn/clusterkeys/internal/application/keys"
	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/pkg/errors"
)

func newKeysCommand(opts *rootOptions) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect and generate keys in the key store",
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the stored keys of a purpose (ids and expiries only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			docs, err := rt.store.Repository.FindAll(ctx, rt.cfg.Keys.Purpose)
			if err != nil {
				return err
			}
			sort.Slice(docs, func(i, j int) bool { return docs[i].KeyID < docs[j].KeyID })

			resp := make([]*dto.KeyResponse, 0, len(docs))
			for _, doc := range docs {
				resp = append(resp, dto.NewKeyResponse(doc))
			}
			return printKeys(cmd.OutOrStdout(), resp, asJSON)
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	var atSecs, atInc uint32
	signingCmd := &cobra.Command{
		Use:   "signing",
		Short: "Show the key that signs the given cluster time",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			mgr, err := rt.newManager(keys.NewSwitches())
			if err != nil {
				return err
			}
			if err := mgr.StartMonitoring(ctx); err != nil {
				return err
			}
			defer mgr.StopMonitoring()
			if err := waitRefreshed(ctx, mgr); err != nil {
				return err
			}

			at := models.NewLogicalTime(atSecs, atInc)
			if !cmd.Flags().Changed("at") {
				at = rt.clock.Now()
			}
			doc, err := mgr.GetKeyForSigning(ctx, at)
			if err != nil {
				return err
			}
			return printKeys(cmd.OutOrStdout(), []*dto.KeyResponse{dto.NewKeyResponse(doc)}, asJSON)
		},
	}
	signingCmd.Flags().Uint32Var(&atSecs, "at", 0, "cluster time seconds, defaults to now")
	signingCmd.Flags().Uint32Var(&atInc, "inc", 0, "cluster time increment")
	signingCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one refresh and generation cycle against the key store",
		Long: `generate runs a single refresh cycle with the key generator enabled. A key is
created only when the stored keys do not cover now plus the rotation interval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			existing, err := rt.store.Repository.FindAll(ctx, rt.cfg.Keys.Purpose)
			if err != nil {
				return err
			}

			switches := keys.NewSwitches()
			if err := switches.Set(keys.SwitchDisableKeyGeneration, rt.cfg.Keys.GenerationSuppressed); err != nil {
				return err
			}
			mgr, err := rt.newManager(switches)
			if err != nil {
				return err
			}
			mgr.EnableKeyGenerator(true)
			if err := mgr.StartMonitoring(ctx); err != nil {
				return err
			}
			mgr.StopMonitoring()

			st := mgr.Status()
			if !st.Refreshed {
				return errors.StoreUnavailable("key store could not be read")
			}
			created := len(st.Keys) - len(existing)
			fmt.Fprintf(cmd.OutOrStdout(), "purpose=%s keys=%d latest_expiry=%s\n", st.Purpose, len(st.Keys), st.LatestExpiry)
			switch {
			case created > 0:
				fmt.Fprintln(cmd.OutOrStdout(), "generated a new key")
			case switches.IsGenerationSuppressed():
				fmt.Fprintln(cmd.OutOrStdout(), "key generation is suppressed")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "existing keys cover the rotation horizon")
			}
			return nil
		},
	}

	keyCmd.AddCommand(listCmd, signingCmd, generateCmd)
	return keyCmd
}

// waitRefreshed fails fast when the first cycle could not read the store.
func waitRefreshed(ctx context.Context, mgr *keys.Manager) error {
	if mgr.Ready() {
		return nil
	}
	return mgr.RefreshNow(ctx)
}

func printKeys(w io.Writer, resp []*dto.KeyResponse, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY ID\tPURPOSE\tEXPIRES AT")
	for _, k := range resp {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", k.KeyID, k.Purpose, k.ExpiresAtString)
	}
	return tw.Flush()
}
