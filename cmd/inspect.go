package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/km-arc/go-beans/framework/container"
)

func newInspectCommand(o *options) *cobra.Command {
	var noBoot bool

	cmd := &cobra.Command{
		Use:   "inspect [bean-id...]",
		Short: "Print the container's definitions, singletons and dependency graph as YAML",
		Long: `Boot the application without serving HTTP and print a snapshot of the container.

With bean ids, only those beans are listed (aliases are accepted).

Examples:
  beans inspect
  beans inspect notes router
  beans inspect --no-boot`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := o.load()
			if err != nil {
				return err
			}
			defer func() {
				if derr := a.Shutdown(context.Background()); derr != nil {
					err = errors.Join(err, derr)
				}
			}()

			if !noBoot {
				if err := a.Boot(contextOrBackground(cmd)); err != nil {
					return err
				}
			}

			snap := a.Snapshot()
			if len(args) > 0 {
				beans, err := pick(a.Container, snap.Beans, args)
				if err != nil {
					return err
				}
				snap.Beans = beans
			}

			enc := yaml.NewEncoder(out(cmd))
			enc.SetIndent(2)
			if err := enc.Encode(snap); err != nil {
				return fmt.Errorf("encode snapshot: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&noBoot, "no-boot", false, "skip provider boot and singleton creation")
	return cmd
}

// pick keeps the beans named by ids, resolving aliases.
func pick(c *container.Container, beans []container.BeanInfo, ids []string) ([]container.BeanInfo, error) {
	byID := make(map[string]container.BeanInfo, len(beans))
	for _, b := range beans {
		byID[b.ID] = b
	}
	out := make([]container.BeanInfo, 0, len(ids))
	for _, id := range ids {
		name, err := c.CanonicalName(id)
		if err != nil {
			return nil, err
		}
		b, ok := byID[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", container.ErrNoSuchDefinition, id)
		}
		out = append(out, b)
	}
	return out, nil
}
