package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/himanishpuri/rgbdassoc/pkg/logger"
	"github.com/himanishpuri/rgbdassoc/pkg/models"
	"github.com/himanishpuri/rgbdassoc/pkg/rgbdassoc"
)

func printBanner() {
	banner := `
       ____   ____ ____  ____                              
 _ __ / ___| | __ )  _ \|  _ \  __ _ ___ ___  ___   ___ 
| '__| |  _  |  _ \ | | | | | |/ _' / __/ __|/ _ \ / __|
| |  | |_| | | |_) | |_| | |_| | (_| \__ \__ \ (_) | (__ 
|_|   \____| |____/____/|____/ \__,_|___/___/\___/ \___|

          RGB-D Timestamp Association Tool
`
	fmt.Println(banner)
}

func handleAssociate(c *cli.Context) error {
	log := logger.GetLogger()

	dataset, err := requireArg(c, "dataset folder")
	if err != nil {
		return err
	}

	printBanner()
	svc, err := createService(c, datasetOptions(c)...)
	if err != nil {
		return fmt.Errorf("service initialization failed: %w", err)
	}
	defer svc.Close()

	fmt.Printf("🔍 Associating %s (max gap %.3fs)...\n", dataset, c.Float64(flagMaxDiff))
	sum, err := svc.Associate(c.Context, dataset)
	if err != nil {
		return fmt.Errorf("associate failed: %w", err)
	}

	printSummary(sum)
	log.Debugf("Run %s recorded", sum.Run.ID)
	return nil
}

func handleBatch(c *cli.Context) error {
	datasets := c.Args().Slice()
	if len(datasets) == 0 {
		return errNothingToDo
	}

	printBanner()
	svc, err := createService(c, datasetOptions(c)...)
	if err != nil {
		return fmt.Errorf("service initialization failed: %w", err)
	}
	defer svc.Close()

	fmt.Printf("📦 Associating %d datasets...\n", len(datasets))
	sums, err := svc.AssociateBatch(c.Context, datasets)
	for i := range sums {
		printSummary(&sums[i])
	}
	if err != nil {
		fmt.Printf("\n❌ %d of %d datasets failed\n", len(datasets)-len(sums), len(datasets))
		return err
	}
	fmt.Printf("\n✅ All %d datasets associated\n", len(datasets))
	return nil
}

func handleVerify(c *cli.Context) error {
	dataset, err := requireArg(c, "dataset folder")
	if err != nil {
		return err
	}

	svc, err := createService(c, rgbdassoc.WithoutCatalog(), rgbdassoc.WithOutputName(c.String(flagOut)))
	if err != nil {
		return fmt.Errorf("service initialization failed: %w", err)
	}
	defer svc.Close()

	reports, err := svc.Verify(c.Context, dataset, c.Int(flagLimit))
	if err != nil {
		return err
	}

	for _, r := range reports {
		fmt.Printf("%.6f %s %dx%d  ↔  %.6f %s %dx%d\n",
			r.Association.RefTimestamp, r.Association.RefID, r.Ref.Width, r.Ref.Height,
			r.Association.MatchTimestamp, r.Association.MatchID, r.Match.Width, r.Match.Height)
	}
	fmt.Printf("\n✅ %s frame pairs decoded\n", humanize.Comma(int64(len(reports))))
	return nil
}

func handleHistory(c *cli.Context) error {
	svc, err := createService(c)
	if err != nil {
		return fmt.Errorf("service initialization failed: %w", err)
	}
	defer svc.Close()

	runs, err := svc.ListRuns(c.Int(flagLimit))
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("\n📭 No runs recorded")
		return nil
	}

	fmt.Printf("\n📚 %d run(s):\n\n", len(runs))
	for i, run := range runs {
		fmt.Printf("%d. %s (%s)\n", i+1, run.DatasetDir, humanize.Time(run.CreatedAt))
		fmt.Printf("   ID: %s | %s/%s matched | max gap %.1fms\n",
			run.ID, humanize.Comma(int64(run.Matched)), humanize.Comma(int64(run.RefCount)), run.MaxGapMs)
	}
	return nil
}

func handleShow(c *cli.Context) error {
	id, err := requireArg(c, "run id")
	if err != nil {
		return err
	}

	svc, err := createService(c)
	if err != nil {
		return fmt.Errorf("service initialization failed: %w", err)
	}
	defer svc.Close()

	run, err := svc.GetRun(id)
	if err != nil {
		return err
	}
	printRun(run)
	return nil
}

func handleDelete(c *cli.Context) error {
	id, err := requireArg(c, "run id")
	if err != nil {
		return err
	}

	svc, err := createService(c)
	if err != nil {
		return fmt.Errorf("service initialization failed: %w", err)
	}
	defer svc.Close()

	run, err := svc.GetRun(id)
	if err != nil {
		return err
	}
	if err := svc.DeleteRun(id); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	fmt.Printf("\n✅ Deleted run %s (%s)\n", run.ID, run.DatasetDir)
	logger.GetLogger().Infof("Deleted run ID=%s", run.ID)
	return nil
}

func printSummary(sum *rgbdassoc.RunSummary) {
	fmt.Printf("\n✅ %s\n", sum.Run.DatasetDir)
	fmt.Printf("   Output:    %s\n", sum.Run.OutputPath)
	fmt.Printf("   Matched:   %s of %s rgb frames (%s depth frames)\n",
		humanize.Comma(int64(sum.Run.Matched)), humanize.Comma(int64(sum.Run.RefCount)), humanize.Comma(int64(sum.Run.CandCount)))
	if sum.Stats.Count > 0 {
		fmt.Printf("   Gap:       mean %.2fms | p95 %.2fms | max %.2fms\n",
			sum.Stats.MeanMs(), sum.Stats.P95*1000, sum.Stats.MaxMs())
	}
	if sum.Run.ID != "" {
		fmt.Printf("   Run ID:    %s\n", sum.Run.ID)
	}
}

func printRun(run *models.Run) {
	fmt.Printf("\nRun %s\n", run.ID)
	fmt.Printf("   Dataset:   %s\n", run.DatasetDir)
	fmt.Printf("   Streams:   %s → %s\n", run.RefDir, run.CandDir)
	fmt.Printf("   Output:    %s\n", run.OutputPath)
	fmt.Printf("   Max diff:  %.3fs\n", run.Tolerance)
	fmt.Printf("   Matched:   %s (unmatched %s, depth frames %s)\n",
		humanize.Comma(int64(run.Matched)), humanize.Comma(int64(run.Unmatched)), humanize.Comma(int64(run.CandCount)))
	fmt.Printf("   Gap:       mean %.2fms | max %.2fms\n", run.MeanGapMs, run.MaxGapMs)
	fmt.Printf("   Recorded:  %s (%s)\n", run.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(run.CreatedAt))
}
