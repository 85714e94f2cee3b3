// catalog_gen turns a grid JSON file into a catalog entry: it checks the
// layout parses, derives the file's CID and keccak256 digest, and prints a
// templates.yaml item whose raw_value points at ipfs://<cid>.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"xdao.co/gridstore/catalog"
	"xdao.co/gridstore/cidutil"
	"xdao.co/gridstore/grid"
	"xdao.co/gridstore/pointer"
	"xdao.co/gridstore/storage/casconfig"
	"xdao.co/gridstore/storage/casregistry"

	_ "xdao.co/gridstore/storage/grpccas"
	_ "xdao.co/gridstore/storage/ipfs"
	_ "xdao.co/gridstore/storage/localfs"
)

func main() {
	if err := newCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	t       catalog.Template
	locator string
	mirror  string
}

func newCmd(out io.Writer) *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:          "catalog_gen [flags] <grid.json>",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			t, err := o.entry(b)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode([]catalog.Template{t}); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.t.ID, "id", "", "template id (required)")
	f.StringVar(&o.t.Name, "name", "", "display name (required)")
	f.StringVar(&o.t.Description, "description", "", "description")
	f.StringVar(&o.t.Author, "author", "GridStore", "author")
	f.StringVar((*string)(&o.t.Category), "category", string(catalog.CategoryMinimal), "category id")
	f.StringVar(&o.t.Preview, "preview", "", "CSS background for the card")
	f.IntVar(&o.t.Grid.Columns, "columns", 3, "card grid columns")
	f.IntVar(&o.t.Grid.Rows, "rows", 3, "card grid rows")
	f.StringVar(&o.t.Grid.Gap, "gap", "12px", "card grid gap")
	f.BoolVar(&o.t.Featured, "featured", false, "list among featured templates")
	f.StringSliceVar(&o.t.Tags, "tag", nil, "tag (repeatable)")
	f.StringVar(&o.locator, "locator", "", "locator to encode instead of ipfs://<cid>")
	f.StringVar(&o.mirror, "mirror-config", "", "mirror config (YAML or JSON); the file is stored there too")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (o options) entry(doc []byte) (catalog.Template, error) {
	t := o.t
	if _, err := grid.Parse(doc); err != nil {
		return t, fmt.Errorf("%s: %w", t.ID, err)
	}
	id, err := cidutil.CIDv1RawSHA256CID(doc)
	if err != nil {
		return t, err
	}
	locator := o.locator
	if locator == "" {
		locator = "ipfs://" + id.String()
	}
	value, err := pointer.EncodeHex(locator, pointer.Keccak256(doc))
	if err != nil {
		return t, err
	}
	t.Source = catalog.Source{RawValue: value}
	if err := validate(t); err != nil {
		return t, err
	}

	if o.mirror != "" {
		cfg, err := casconfig.LoadFile(o.mirror)
		if err != nil {
			return t, err
		}
		cas, closeFn, err := cfg.Open(casregistry.RoleClient, "")
		if err != nil {
			return t, err
		}
		if closeFn != nil {
			defer closeFn()
		}
		if _, err := cas.Put(doc); err != nil {
			return t, fmt.Errorf("mirror: %w", err)
		}
	}
	return t, nil
}

// validate runs t through the catalog parser alongside the embedded
// categories, so the printed entry is known to load.
func validate(t catalog.Template) error {
	var cats []catalog.CategoryInfo
	for _, c := range catalog.Default().Categories() {
		if c.ID != catalog.CategoryAll {
			cats = append(cats, c)
		}
	}
	b, err := yaml.Marshal(map[string]interface{}{
		"categories": cats,
		"templates":  []catalog.Template{t},
	})
	if err != nil {
		return err
	}
	if _, err := catalog.Parse(b); err != nil {
		return fmt.Errorf("generated entry does not load: %w (categories: %s)", err, categoryIDs(cats))
	}
	return nil
}

func categoryIDs(cs []catalog.CategoryInfo) string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = string(c.ID)
	}
	return strings.Join(ids, ", ")
}
