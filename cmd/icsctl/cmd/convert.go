package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jpfielding/ics.go/pkg/ics"
	"github.com/spf13/cobra"
)

func NewConvertCmd(ctx context.Context) *cobra.Command {
	var (
		version  int
		compress string
		level    int
	)
	cmd := &cobra.Command{
		Use:   "convert <in.ics> <out.ics>",
		Short: "rewrite an ICS file with a new version or compression",
		Long: "convert decodes the input image completely and writes it back out, " +
			"optionally switching between v1 (.ics + .ids) and v2 (single file) " +
			"or between uncompressed and gzip payloads",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convert(ctx, args[0], args[1], version, compress, level)
		},
	}
	cmd.Flags().IntVar(&version, "version", 2, "output format version (1 or 2)")
	cmd.Flags().StringVar(&compress, "compress", "gzip", "output compression (none or gzip)")
	cmd.Flags().IntVar(&level, "level", 6, "gzip compression level (1-9)")
	return cmd
}

func convert(ctx context.Context, in, out string, version int, compress string, level int) error {
	src, err := ics.Open(in, "r")
	if err != nil {
		return fmt.Errorf("open %s: %w", in, err)
	}
	defer src.Close()

	dt, dims := src.GetLayout()
	buf := make([]byte, src.DataSize())
	if err := src.GetData(buf); err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}
	slog.InfoContext(ctx, "decoded image",
		"file", in,
		"type", dt.String(),
		"bytes", len(buf))

	dst, err := ics.Open(out, "w"+strconv.Itoa(version))
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := dst.SetLayout(dt, dims); err != nil {
		return err
	}
	if err := copyMetadata(src, dst); err != nil {
		return err
	}
	switch compress {
	case "none":
		err = dst.SetCompression(ics.CompressionUncompressed, 0)
	case "gzip":
		err = dst.SetCompression(ics.CompressionGzip, level)
	default:
		err = fmt.Errorf("unknown compression %q", compress)
	}
	if err != nil {
		return err
	}
	if err := dst.SetData(buf); err != nil {
		return err
	}
	prov := fmt.Sprintf("icsctl convert %s [%s] %s",
		in, uuid.NewString(), time.Now().UTC().Format(time.RFC3339))
	if err := dst.AddHistoryString("software", prov); err != nil {
		return err
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	slog.InfoContext(ctx, "wrote image", "file", out, "version", version, "compression", compress)
	return nil
}

// copyMetadata carries the per-axis and per-imel parameters, the
// coordinate system, and the history log from src to dst.
func copyMetadata(src, dst *ics.Image) error {
	_, dims := src.GetLayout()
	for i := range dims {
		order, label, err := src.GetOrder(i)
		if err != nil {
			return err
		}
		if err := dst.SetOrder(i, order, label); err != nil {
			return err
		}
		origin, scale, err := src.GetPosition(i)
		if err != nil {
			return err
		}
		if err := dst.SetPosition(i, origin, scale); err != nil {
			return err
		}
		unit, err := src.GetUnit(i)
		if err != nil {
			return err
		}
		if err := dst.SetUnit(i, unit); err != nil {
			return err
		}
	}
	if coord := src.GetCoordinateSystem(); coord != "" {
		if err := dst.SetCoordinateSystem(coord); err != nil {
			return err
		}
	}
	if bits := src.GetSignificantBits(); bits > 0 {
		if err := dst.SetSignificantBits(bits); err != nil {
			return err
		}
	}
	origin, scale, unit := src.GetImelUnits()
	dst.SetImelUnits(origin, scale, unit)
	if st := src.GetScilType(); st != "" {
		dst.SetScilType(st)
	}
	it := src.NewHistoryIterator("")
	for {
		key, value, err := it.KeyValue()
		if errors.Is(err, ics.ErrEndOfHistory) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := dst.AddHistoryString(key, value); err != nil {
			return err
		}
	}
}
