package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jpfielding/ics.go/pkg/ics"
	"github.com/spf13/cobra"
)

// axisInfo is the JSON shape of one image dimension.
type axisInfo struct {
	Size   int     `json:"size"`
	Order  string  `json:"order"`
	Label  string  `json:"label,omitempty"`
	Origin float64 `json:"origin"`
	Scale  float64 `json:"scale"`
	Unit   string  `json:"unit,omitempty"`
}

type imelInfo struct {
	DataType        string  `json:"dataType"`
	SignificantBits int     `json:"significantBits"`
	Origin          float64 `json:"origin"`
	Scale           float64 `json:"scale"`
	Unit            string  `json:"unit,omitempty"`
}

type fileInfo struct {
	File        string     `json:"file"`
	Version     int        `json:"version"`
	Axes        []axisInfo `json:"axes"`
	Imel        imelInfo   `json:"imel"`
	Coordinates string     `json:"coordinates,omitempty"`
	Compression string     `json:"compression"`
	ByteOrder   []int      `json:"byteOrder,omitempty"`
	ScilType    string     `json:"scilType,omitempty"`
	DataBytes   int        `json:"dataBytes"`
	SourceFile  string     `json:"sourceFile,omitempty"`
	History     []string   `json:"history,omitempty"`
}

func NewInfoCmd(ctx context.Context) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info <file.ics>...",
		Short: "dump the header of ICS files",
		Long:  "info parses each named ICS file and prints its layout, representation, and history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := dumpFile(ctx, path, asJSON); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of text")
	return cmd
}

func dumpFile(ctx context.Context, path string, asJSON bool) error {
	img, err := ics.Open(path, "r")
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer img.Close()

	info := collect(img)
	slog.DebugContext(ctx, "parsed header", "file", path, "version", info.Version)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	printInfo(info)
	return nil
}

func collect(img *ics.Image) fileInfo {
	dt, dims := img.GetLayout()
	comp, _ := img.GetCompression()
	origin, scale, unit := img.GetImelUnits()
	srcFile, _ := img.GetSource()

	info := fileInfo{
		File:        img.Filename(),
		Version:     img.Version(),
		Coordinates: img.GetCoordinateSystem(),
		Compression: comp.String(),
		ByteOrder:   img.GetByteOrder(),
		ScilType:    img.GetScilType(),
		DataBytes:   img.DataSize(),
		SourceFile:  srcFile,
		Imel: imelInfo{
			DataType:        dt.String(),
			SignificantBits: img.GetSignificantBits(),
			Origin:          origin,
			Scale:           scale,
			Unit:            unit,
		},
	}
	for i, size := range dims {
		order, label, _ := img.GetOrder(i)
		ao, as, _ := img.GetPosition(i)
		au, _ := img.GetUnit(i)
		info.Axes = append(info.Axes, axisInfo{
			Size:   size,
			Order:  order,
			Label:  label,
			Origin: ao,
			Scale:  as,
			Unit:   au,
		})
	}
	it := img.NewHistoryIterator("")
	for {
		line, err := it.String()
		if errors.Is(err, ics.ErrEndOfHistory) {
			break
		}
		if err != nil {
			break
		}
		info.History = append(info.History, line)
	}
	return info
}

func printInfo(info fileInfo) {
	fmt.Printf("%s (ICS v%d.0)\n", info.File, info.Version)
	fmt.Printf("  type        %s, %d significant bits\n", info.Imel.DataType, info.Imel.SignificantBits)
	fmt.Printf("  compression %s\n", info.Compression)
	if info.Coordinates != "" {
		fmt.Printf("  coordinates %s\n", info.Coordinates)
	}
	if info.ScilType != "" {
		fmt.Printf("  SCIL_TYPE   %s\n", info.ScilType)
	}
	if info.SourceFile != "" {
		fmt.Printf("  source      %s\n", info.SourceFile)
	}
	fmt.Printf("  data        %d bytes\n", info.DataBytes)
	for i, ax := range info.Axes {
		fmt.Printf("  axis %d      %s size=%d origin=%g scale=%g", i, ax.Order, ax.Size, ax.Origin, ax.Scale)
		if ax.Unit != "" {
			fmt.Printf(" unit=%s", ax.Unit)
		}
		if ax.Label != "" {
			fmt.Printf(" label=%s", ax.Label)
		}
		fmt.Println()
	}
	for _, h := range info.History {
		fmt.Printf("  history     %s\n", h)
	}
}
