package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/staquery/internal/model"
)

// PropertyInfo describes an entity property.
type PropertyInfo struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Columns []string `json:"columns,omitempty"`
}

// NavigationInfo describes a navigation property.
type NavigationInfo struct {
	Name      string `json:"name"`
	Target    string `json:"target"`
	Set       bool   `json:"set"`
	AdminOnly bool   `json:"admin_only,omitempty"`
	Storage   string `json:"storage"`
}

// EntityTypeInfo describes an entity type.
type EntityTypeInfo struct {
	Name       string           `json:"name"`
	Plural     string           `json:"plural"`
	Table      string           `json:"table"`
	Properties []PropertyInfo   `json:"properties"`
	Navigation []NavigationInfo `json:"navigation"`
}

// NewModelCommand creates the model command.
func NewModelCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "model [entity-type]",
		Short: "Show the entity model",
		Long: `List the entity types of the model, or describe one of them.

The built-in SensorThings model is used unless model.dir is configured.

Examples:
  staquery model
  staquery model Datastreams
  staquery model Thing --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(rootOpts, cmd)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				infos := make([]EntityTypeInfo, 0, len(env.registry.EntityTypes()))
				for _, et := range env.registry.EntityTypes() {
					infos = append(infos, describeEntityType(et))
				}
				return env.out.Success("", infos, func(w io.Writer) { printEntityTypes(w, infos) })
			}

			et, err := env.service().EntityType(args[0])
			if err != nil {
				env.out.Error(err, nil)
				return WrapExitError(ExitFailure, "unknown entity type", err)
			}
			info := describeEntityType(et)
			return env.out.Success("", info, func(w io.Writer) { printEntityType(w, info) })
		},
	}
}

func describeEntityType(et *model.EntityType) EntityTypeInfo {
	info := EntityTypeInfo{
		Name:       et.Name,
		Plural:     et.Plural,
		Table:      et.Table,
		Properties: []PropertyInfo{},
		Navigation: []NavigationInfo{},
	}
	for _, p := range et.EntityProperties() {
		info.Properties = append(info.Properties, PropertyInfo{
			Name:    p.Name,
			Type:    string(p.Type),
			Columns: p.Columns,
		})
	}
	for _, nav := range et.NavigationProperties() {
		info.Navigation = append(info.Navigation, NavigationInfo{
			Name:      nav.Name,
			Target:    nav.TargetName,
			Set:       nav.IsSet,
			AdminOnly: nav.AdminOnly,
			Storage:   storage(nav),
		})
	}
	return info
}

func storage(nav *model.NavigationProperty) string {
	switch {
	case nav.ForeignKey != "":
		return "foreign key " + nav.ForeignKey
	case nav.MappedBy != "":
		return "mapped by " + nav.MappedBy
	case nav.Link.Table != "":
		return fmt.Sprintf("link %s(%s, %s)", nav.Link.Table, nav.Link.Source, nav.Link.Target)
	}
	return ""
}

func printEntityTypes(w io.Writer, infos []EntityTypeInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tENTITY SET\tTABLE\tPROPERTIES\tNAVIGATION")
	for _, info := range infos {
		navs := make([]string, 0, len(info.Navigation))
		for _, nav := range info.Navigation {
			navs = append(navs, nav.Name)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", info.Name, info.Plural, info.Table, len(info.Properties), strings.Join(navs, ","))
	}
	tw.Flush()
}

func printEntityType(w io.Writer, info EntityTypeInfo) {
	fmt.Fprintf(w, "%s (%s, table %s)\n\n", info.Name, info.Plural, info.Table)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROPERTY\tTYPE\tCOLUMNS")
	for _, p := range info.Properties {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Type, strings.Join(p.Columns, ","))
	}
	tw.Flush()

	if len(info.Navigation) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAVIGATION\tTARGET\tSTORAGE")
	for _, nav := range info.Navigation {
		target := nav.Target
		if nav.Set {
			target += "[]"
		}
		if nav.AdminOnly {
			target += " (admin)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", nav.Name, target, nav.Storage)
	}
	tw.Flush()
}
