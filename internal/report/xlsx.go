// Package report renders sweep and optimizer results for humans: an xlsx
// comparison workbook and indented JSON export.
package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/meridian-ops/netplan/internal/model"
)

// WriteSweepWorkbook writes the scenario comparison table and, when a best
// scenario exists, its per-year breakdown.
func WriteSweepWorkbook(path string, res *model.SweepResult) error {
	f := xlsx.NewFile()

	if err := addScenarioSheet(f, res); err != nil {
		return err
	}
	if res.Best != nil && res.Best.Result != nil {
		if err := addYearSheet(f, res.Best.Result); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save workbook %s", path)
	}
	return nil
}

func addScenarioSheet(f *xlsx.File, res *model.SweepResult) error {
	sheet, err := f.AddSheet("Scenarios")
	if err != nil {
		return eris.Wrap(err, "report: add scenario sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Nodes", "Total Cost", "Transport Cost", "Warehouse Cost",
		"Service Level", "Avg Utilization", "Blended Score", "Best", "Error",
	} {
		header.AddCell().Value = h
	}

	for i := range res.Scenarios {
		s := &res.Scenarios[i]
		row := sheet.AddRow()
		row.AddCell().SetInt(s.Nodes)
		if s.Err != "" {
			for j := 0; j < 6; j++ {
				row.AddCell()
			}
			row.AddCell().Value = ""
			row.AddCell().Value = s.Err
			continue
		}
		row.AddCell().SetFloat(s.KPIs.TotalNetworkCost)
		row.AddCell().SetFloat(s.KPIs.TransportCost)
		row.AddCell().SetFloat(s.KPIs.WarehouseCost)
		row.AddCell().SetFloat(s.KPIs.WeightedServiceLevel)
		row.AddCell().SetFloat(s.KPIs.AvgUtilization)
		row.AddCell().SetFloat(s.KPIs.BlendedScore)
		if res.Best != nil && res.Best.Nodes == s.Nodes {
			row.AddCell().Value = "yes"
		} else {
			row.AddCell().Value = ""
		}
		row.AddCell().Value = ""
	}
	return nil
}

func addYearSheet(f *xlsx.File, res *model.NetworkResult) error {
	sheet, err := f.AddSheet("Best Per Year")
	if err != nil {
		return eris.Wrap(err, "report: add per-year sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Year", "Open Facilities", "Total Cost", "Transport Cost",
		"Facility Cost", "Demand", "Served", "Unserved",
		"Service Level", "Avg Utilization",
	} {
		header.AddCell().Value = h
	}

	for _, y := range res.PerYear {
		row := sheet.AddRow()
		row.AddCell().SetInt(y.Year)
		row.AddCell().SetInt(len(y.OpenFacilities))
		row.AddCell().SetFloat(y.Totals.TotalCost)
		row.AddCell().SetFloat(y.Totals.TransportCost)
		row.AddCell().SetFloat(y.Totals.FacilityCost)
		row.AddCell().SetFloat(y.Totals.Demand)
		row.AddCell().SetFloat(y.Totals.DemandServed)
		row.AddCell().SetFloat(y.Totals.Unserved)
		row.AddCell().SetFloat(y.Totals.ServiceLevel)
		row.AddCell().SetFloat(y.Totals.AvgUtilization)
	}
	return nil
}

// WriteJSON writes v as indented JSON to path, or to stdout when path is "-"
// or empty.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal json")
	}
	if path == "" || path == "-" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}
