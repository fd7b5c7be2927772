package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"SalesPulse/internal/domain/models"
	"SalesPulse/pkg/util"

	"github.com/olekukonko/tablewriter"
)

func printWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

func formatR2(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

func renderTraining(w io.Writer, res *models.TrainResponse) {
	fmt.Fprintf(w, "%s\n", res.Message)
	fmt.Fprintf(w, "  bundle:   %s\n", res.BundleID)
	fmt.Fprintf(w, "  records:  %d\n", res.Records)
	fmt.Fprintf(w, "  samples:  %d (train %d, test %d)\n",
		res.TrainingSamples, res.Metrics.NTrainSamples, res.Metrics.NTestSamples)
	fmt.Fprintf(w, "  range:    %s .. %s\n", res.DateRange.Start, res.DateRange.End)
	fmt.Fprintf(w, "  train R2: %s\n", formatR2(res.Metrics.TrainR2))
	fmt.Fprintf(w, "  test R2:  %s\n", formatR2(res.Metrics.TestR2))

	names := make([]string, 0, len(res.Metrics.FeatureImportance))
	for k := range res.Metrics.FeatureImportance {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		return res.Metrics.FeatureImportance[names[i]] > res.Metrics.FeatureImportance[names[j]]
	})

	table := tablewriter.NewWriter(w)
	table.Header("Feature", "Importance")
	for _, n := range names {
		table.Append(n, fmt.Sprintf("%.4f", res.Metrics.FeatureImportance[n]))
	}
	table.Render()
}

func renderForecast(w io.Writer, res *models.ForecastResponse) {
	fmt.Fprintf(w, "shop %s, bundle %s\n", res.Shop, res.BundleID)

	table := tablewriter.NewWriter(w)
	table.Header("Date", "Forecast", "Lower", "Upper")
	for i, d := range res.ForecastDates {
		table.Append(
			d,
			fmt.Sprintf("%.2f", res.ForecastValues[i]),
			fmt.Sprintf("%.2f", res.LowerBound[i]),
			fmt.Sprintf("%.2f", res.UpperBound[i]),
		)
	}
	table.Render()
}

func renderStatus(w io.Writer, st *models.ModelStatus) {
	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	table.Append("model_trained", strconv.FormatBool(st.ModelTrained))
	table.Append("loaded", strconv.FormatBool(st.Loaded))
	table.Append("bundle_id", st.BundleID)
	table.Append("model_path", st.ModelPath)
	table.Append("model_size_mb", fmt.Sprintf("%.2f", st.ModelSizeMB))
	table.Render()
}

func renderRuns(w io.Writer, runs []models.TrainingRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no training runs recorded")
		return
	}
	table := tablewriter.NewWriter(w)
	table.Header("Finished", "Bundle", "Records", "Samples", "Range", "Train R2", "Test R2", "Trees", "Depth")
	for _, r := range runs {
		table.Append(
			r.FinishedAt.Format("2006-01-02 15:04:05"),
			r.BundleID,
			strconv.Itoa(r.Records),
			strconv.Itoa(r.Samples),
			util.FormatDate(r.DateStart)+" .. "+util.FormatDate(r.DateEnd),
			formatR2(r.TrainR2),
			formatR2(r.TestR2),
			strconv.Itoa(r.NEstimators),
			strconv.Itoa(r.MaxDepth),
		)
	}
	table.Render()
}
