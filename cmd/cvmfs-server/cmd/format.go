package cmd

import (
	"fmt"
	"io"
	"time"

	units "github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/nc6/cvmfs/pkg/model"
	"gopkg.in/yaml.v2"
)

const (
	formatTable = "table"
	formatYAML  = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func printYAML(w io.Writer, data interface{}) error {
	b, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func state(info model.Info) string {
	switch {
	case info.Role == "":
		return color.RedString("broken")
	case info.IsReplica():
		if info.LastSnapshot.IsZero() {
			return color.HiBlackString("never synced")
		}
		return "synced " + units.HumanDuration(time.Since(info.LastSnapshot)) + " ago"
	case info.InTransaction:
		return color.YellowString("in transaction")
	default:
		return color.GreenString("idle")
	}
}

func printList(w io.Writer, format string, infos model.Infos) error {
	if format == formatYAML {
		return printYAML(w, infos)
	}
	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("NAME", "TYPE", "STATE", "URL")
	for _, info := range infos {
		table.AddRow(info.Name, info.Role.Label(), state(info), info.StratumURL)
	}
	_, err := fmt.Fprintln(w, table)
	return err
}

func printInfo(w io.Writer, format string, info model.Info, now time.Time) error {
	if format == formatYAML {
		return printYAML(w, info)
	}
	table := uitable.New()
	table.MaxColWidth = 100
	table.Wrap = true
	table.AddRow("Name:", info.Name)
	table.AddRow("Type:", fmt.Sprintf("%s (%s)", info.Role.Label(), info.Role))
	table.AddRow("Owner:", info.User)
	table.AddRow("URL:", info.StratumURL)
	table.AddRow("Upstream:", info.Upstream)
	table.AddRow("State:", state(info))
	if info.IsReplica() {
		if !info.LastSnapshot.IsZero() {
			table.AddRow("Last snapshot:", info.LastSnapshot.Format(time.RFC3339))
		}
	} else {
		table.AddRow("Union mount:", fmt.Sprintf("%s (%s)", info.UnionDir, mountMode(info)))
		if info.RootHash != "" {
			table.AddRow("Root hash:", info.RootHash)
		}
		table.AddRow("Scratch:", units.HumanSize(float64(info.ScratchBytes)))
		table.AddRow("Whitelist:", whitelistState(info.WhitelistExpiry, now))
	}
	_, err := fmt.Fprintln(w, table)
	return err
}

func mountMode(info model.Info) string {
	if info.Writable {
		return color.YellowString("read-write")
	}
	return "read-only"
}

func whitelistState(expiry, now time.Time) string {
	switch {
	case expiry.IsZero():
		return color.RedString("missing")
	case !now.Before(expiry):
		return color.RedString("expired on %s", expiry.Format(time.RFC3339))
	default:
		return fmt.Sprintf("expires on %s (in %s)", expiry.Format(time.RFC3339), units.HumanDuration(expiry.Sub(now)))
	}
}
