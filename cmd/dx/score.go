package main

import (
	"context"
	"fmt"
	"os"

	"github.com/deptexhq/deptex/internal/depscore"
	"github.com/deptexhq/deptex/internal/model"
	"github.com/deptexhq/deptex/internal/ui"
	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:     "score",
	Short:   "Compute a depscore for a hypothetical finding",
	GroupID: "browse",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cvss, _ := cmd.Flags().GetFloat64("cvss")
		epss, _ := cmd.Flags().GetFloat64("epss")
		kev, _ := cmd.Flags().GetBool("kev")
		reachable, _ := cmd.Flags().GetBool("reachable")
		tier, _ := cmd.Flags().GetString("tier")
		transitive, _ := cmd.Flags().GetBool("transitive")
		devOnly, _ := cmd.Flags().GetBool("dev-only")
		malicious, _ := cmd.Flags().GetBool("malicious")
		reputation, _ := cmd.Flags().GetFloat64("reputation")

		scoreCtx := depscore.Context{
			CVSS:       cvss,
			EPSS:       epss,
			KEV:        kev,
			Reachable:  reachable,
			Tier:       model.AssetTier(tier),
			Transitive: transitive,
			DevOnly:    devOnly,
			Malicious:  malicious,
			Reputation: reputation,
		}
		if cmd.Flags().Changed("tier-weight") {
			weight, _ := cmd.Flags().GetFloat64("tier-weight")
			scoreCtx.TierWeight = &weight
		}

		resp, err := gateway.Score(context.Background(), scoreCtx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		fmt.Printf("%d %s\n", resp.Score, ui.RenderBracket(resp.Bracket, string(resp.Bracket)))
		return nil
	},
}

func init() {
	scoreCmd.Flags().Float64("cvss", 0, "CVSS base score, 0-10")
	scoreCmd.Flags().Float64("epss", 0, "EPSS exploit probability, 0-1")
	scoreCmd.Flags().Bool("kev", false, "advisory is in CISA's KEV catalog")
	scoreCmd.Flags().Bool("reachable", false, "vulnerable code path is reachable")
	scoreCmd.Flags().String("tier", "", "asset tier of the owning project (crown_jewel, production, internal, non_production)")
	scoreCmd.Flags().Float64("tier-weight", 0, "custom tier weight override")
	scoreCmd.Flags().Bool("transitive", false, "dependency is not named in the project's own manifest")
	scoreCmd.Flags().Bool("dev-only", false, "dependency is used only at build or test time")
	scoreCmd.Flags().Bool("malicious", false, "package itself is flagged as hostile")
	scoreCmd.Flags().Float64("reputation", 0, "registry trust adjustment, -1 to 1")
	_ = scoreCmd.MarkFlagRequired("cvss")
}
