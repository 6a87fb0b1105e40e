package main

import (
	"fmt"

	"forensicvault/pkg/deviceattrs"
	"forensicvault/pkg/domain"

	"github.com/spf13/cobra"
)

func (a *app) attrsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attrs",
		Short: "Inspect device attribute schemas",
	}
	cmd.AddCommand(a.attrsNormalizeCmd(), a.attrsFieldsCmd())
	return cmd
}

func (a *app) attrsNormalizeCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:         "normalize <device type> [key=value]...",
		Short:       "Show how an attribute bag would be stored",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{skipRuntime: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := parseAttrs(args[1:])
			if err != nil {
				return err
			}
			mode := deviceattrs.Permissive
			if strict || a.cfg.DeviceAttributes.Strict {
				mode = deviceattrs.Strict
			}
			out, err := deviceattrs.NewResolver(mode).Normalize(domain.DeviceType(args[0]), raw)
			if err != nil {
				return err
			}
			if out == nil {
				out = map[string]any{}
			}
			return a.print(out)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "reject keys that belong to other device types")
	return cmd
}

func (a *app) attrsFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "fields <device type>",
		Short:       "List the attributes recorded for a device type",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{skipRuntime: ""},
		RunE: func(_ *cobra.Command, args []string) error {
			deviceType := domain.DeviceType(args[0])
			if !deviceType.Known() {
				return fmt.Errorf("unknown device type %q", args[0])
			}
			fields := deviceattrs.Fields(deviceType)
			out := make([]map[string]string, 0, len(fields))
			for _, f := range fields {
				out = append(out, map[string]string{"name": f.Name, "kind": f.Kind.String()})
			}
			return a.print(out)
		},
	}
}
