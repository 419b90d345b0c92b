package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"tileexport/internal/exporter"
	"tileexport/internal/view"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Submit a 3D model export",
	Long: `Submit a model export to the model service.

The request can be described in a YAML or JSON metadata file (--metadata), on
the command line, or both; flags override file values. --bbox replaces the
geometry with a polygon around the given lon/lat box. Use --dry-run to print
the request body without sending it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadClientConfig()
		if err != nil {
			return err
		}

		req, err := requestFromFlags(cmd)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if bboxFlag, _ := cmd.Flags().GetString("bbox"); bboxFlag != "" {
			bbox, err := exporter.ParseBBox(bboxFlag)
			if err != nil {
				return err
			}
			polygon, err := bbox.Polygon()
			if err != nil {
				return err
			}
			req.Geometry = polygon

			fmt.Fprintln(out, "Bounding box:")
			for _, c := range bbox.Corners()[:4] {
				fmt.Fprintf(out, "  %s, %s\n",
					view.FormatCoordinate(c[0], cfg.MaxFractionDigits),
					view.FormatCoordinate(c[1], cfg.MaxFractionDigits))
			}
		}

		if err := req.Validate(); err != nil {
			return err
		}

		if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
			payload, err := req.ExportPayload()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		}

		return submit(cmd, cfg, exporter.ExportEndpoint(cfg.ModelsBaseURL, cfg.ModelsPath), req)
	},
}

// metadataFlags maps export flags onto metadata fields.
var metadataFlags = []struct {
	name  string
	usage string
	field func(*exporter.Request) *string
}{
	{"title", "Model title", func(r *exporter.Request) *string { return &r.Title }},
	{"description", "Model description", func(r *exporter.Request) *string { return &r.Description }},
	{"version", "Model version", func(r *exporter.Request) *string { return &r.Version }},
	{"srs", "Spatial reference system", func(r *exporter.Request) *string { return &r.SRS }},
	{"producer", "Producer name", func(r *exporter.Request) *string { return &r.ProducerName }},
	{"classification", "Classification", func(r *exporter.Request) *string { return &r.Classification }},
	{"region", "Region", func(r *exporter.Request) *string { return &r.Region }},
	{"sensor-type", "Sensor type", func(r *exporter.Request) *string { return &r.SensorType }},
	{"project", "Project name", func(r *exporter.Request) *string { return &r.ProjectName }},
}

// requestFromFlags loads --metadata if given and applies the location and
// metadata flags that were set on top of it.
func requestFromFlags(cmd *cobra.Command) (exporter.Request, error) {
	var req exporter.Request
	flags := cmd.Flags()

	if path, _ := flags.GetString("metadata"); path != "" {
		loaded, err := exporter.LoadRequest(path)
		if err != nil {
			return exporter.Request{}, err
		}
		req = loaded
	}

	setString(cmd, "model-path", &req.ModelPath)
	setString(cmd, "tileset", &req.TilesetFilename)
	setString(cmd, "identifier", &req.Identifier)
	for _, m := range metadataFlags {
		if flags.Lookup(m.name) != nil {
			setString(cmd, m.name, m.field(&req))
		}
	}
	return req, nil
}

func setString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func addLocationFlags(cmd *cobra.Command) {
	cmd.Flags().String("model-path", "", "Path of the model on the model service")
	cmd.Flags().String("tileset", "", "Tileset file name (must end in .json)")
	cmd.Flags().String("identifier", "", "Model identifier")
	cmd.Flags().String("metadata", "", "YAML or JSON file describing the request")
}

func init() {
	addLocationFlags(exportCmd)
	for _, m := range metadataFlags {
		exportCmd.Flags().String(m.name, "", m.usage)
	}
	exportCmd.Flags().String("bbox", "", "Bounding box minLon,minLat,maxLon,maxLat used as geometry")
	exportCmd.Flags().Bool("dry-run", false, "Print the request body instead of sending it")

	rootCmd.AddCommand(exportCmd)
}
