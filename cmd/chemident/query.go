package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chemident/internal/index"
	"chemident/pkg/ident"
)

// selector holds the compound selection flags shared by the query commands.
type selector struct {
	registry  int64
	secondary int64
	accession string
}

func (s *selector) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&s.registry, "registry", 0, "Registry number (molregno)")
	cmd.Flags().Int64Var(&s.secondary, "secondary", 0, "Secondary ID")
	cmd.Flags().StringVar(&s.accession, "accession", "", "Accession ID (e.g. CHEMBL25)")
}

// identifier builds the partial identifier from the flags that were set.
func (s *selector) identifier(cmd *cobra.Command) (ident.Identifier, error) {
	var id ident.Identifier
	if cmd.Flags().Changed("registry") {
		id.RegistryNumber = ident.Int(s.registry)
	}
	if cmd.Flags().Changed("secondary") {
		id.SecondaryID = ident.Int(s.secondary)
	}
	if cmd.Flags().Changed("accession") {
		acc := strings.TrimSpace(s.accession)
		if acc == "" {
			return id, fmt.Errorf("--accession must not be empty")
		}
		id.AccessionID = ident.Str(strings.ToUpper(acc))
	}
	if id.IsZero() {
		return id, fmt.Errorf("one of --registry, --secondary or --accession is required")
	}
	return id, nil
}

// compound is the JSON view of an identifier.
type compound struct {
	AccessionID    *string `json:"accession_id"`
	SecondaryID    *int64  `json:"secondary_id"`
	RegistryNumber *int64  `json:"registry_number"`
}

func toCompound(id ident.Identifier) compound {
	var c compound
	if id.AccessionID.Valid {
		c.AccessionID = &id.AccessionID.String
	}
	if id.SecondaryID.Valid {
		c.SecondaryID = &id.SecondaryID.Int64
	}
	if id.RegistryNumber.Valid {
		c.RegistryNumber = &id.RegistryNumber.Int64
	}
	return c
}

func toCompounds(ids []ident.Identifier) []compound {
	out := make([]compound, 0, len(ids))
	for _, id := range ids {
		out = append(out, toCompound(id))
	}
	return out
}

// queryCmd wires the selector flags and index loading around run.
func queryCmd(use, short, long string, run func(e *env, idx *index.Indexes, id ident.Identifier) error) *cobra.Command {
	var sel selector
	cmd := &cobra.Command{
		Use:   use + " (--registry N | --secondary N | --accession ID)",
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := sel.identifier(cmd)
			if err != nil {
				return err
			}
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			idx, release, err := e.openIndexes(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			return run(e, idx, id)
		},
	}
	sel.register(cmd)
	return cmd
}

func newResolveCmd() *cobra.Command {
	return queryCmd("resolve", "Fill in the missing identifiers of a compound",
		`The resolve command completes a partial identifier from the persisted indexes.

Example:
  chemident resolve --accession CHEMBL25
  chemident resolve --secondary 1042 --json`,
		func(e *env, idx *index.Indexes, id ident.Identifier) error {
			resolved, ok := idx.Resolve(id)
			if !ok {
				return fmt.Errorf("%w for %s", errNoMatch, id)
			}
			if jsonOut {
				return e.printJSON(toCompound(resolved))
			}
			e.printf("%s\n", resolved)
			return nil
		})
}

func newHierarchyCmd(use, short string, lookup func(*index.Indexes, ident.Identifier) (ident.Set, bool)) *cobra.Command {
	return queryCmd(use, short,
		fmt.Sprintf(`The %s command resolves the compound and lists its %s in the
molecule hierarchy, sorted by identifier.`, use, use),
		func(e *env, idx *index.Indexes, id ident.Identifier) error {
			set, ok := lookup(idx, id)
			if !ok {
				return fmt.Errorf("%w: %s is not in the hierarchy", errNoMatch, id)
			}
			ids := set.Sorted()
			if jsonOut {
				return e.printJSON(toCompounds(ids))
			}
			for _, m := range ids {
				e.printf("%s\n", m)
			}
			return nil
		})
}

func newPhaseCmd() *cobra.Command {
	return queryCmd("phase", "Show the highest development phase of a compound",
		`The phase command prints the highest phase recorded in either catalogue.`,
		func(e *env, idx *index.Indexes, id ident.Identifier) error {
			phase, ok := idx.Phase(id)
			if !ok {
				return fmt.Errorf("%w: no phase recorded for %s", errNoMatch, id)
			}
			if jsonOut {
				return e.printJSON(map[string]int{"phase": phase})
			}
			e.printf("%d\n", phase)
			return nil
		})
}

func newSourcesCmd() *cobra.Command {
	return queryCmd("sources", "List the data sources of a compound",
		`The sources command resolves the compound to its secondary ID and lists the
names of the sources that contributed it. A compound without sources prints
nothing.`,
		func(e *env, idx *index.Indexes, id ident.Identifier) error {
			resolved, ok := idx.Resolve(id)
			if !ok || !resolved.SecondaryID.Valid {
				return fmt.Errorf("%w: no secondary ID for %s", errNoMatch, id)
			}
			names := idx.Sources(resolved.SecondaryID.Int64)
			if jsonOut {
				return e.printJSON(names)
			}
			for _, n := range names {
				e.printf("%s\n", n)
			}
			return nil
		})
}

type description struct {
	Compound compound   `json:"compound"`
	Phase    *int64     `json:"phase"`
	Sources  []string   `json:"sources"`
	Parents  []compound `json:"parents"`
	Children []compound `json:"children"`
}

func newDescribeCmd() *cobra.Command {
	return queryCmd("describe", "Show everything known about a compound",
		`The describe command prints the resolved identifier, phase, sources and
hierarchy neighbours of a compound.`,
		func(e *env, idx *index.Indexes, id ident.Identifier) error {
			rec, ok := idx.Describe(id)
			if !ok {
				return fmt.Errorf("%w for %s", errNoMatch, id)
			}
			if jsonOut {
				d := description{
					Compound: toCompound(rec.Identifier),
					Sources:  rec.Sources,
					Parents:  toCompounds(rec.Parents),
					Children: toCompounds(rec.Children),
				}
				if rec.Phase.Valid {
					d.Phase = &rec.Phase.Int64
				}
				return e.printJSON(d)
			}
			e.printf("Compound: %s\n", rec.Identifier)
			if rec.Phase.Valid {
				e.printf("Phase:    %d\n", rec.Phase.Int64)
			} else {
				e.printf("Phase:    -\n")
			}
			e.printf("Sources:  %s\n", strings.Join(rec.Sources, ", "))
			printList(e, "Parents", rec.Parents)
			printList(e, "Children", rec.Children)
			return nil
		})
}

func printList(e *env, label string, ids []ident.Identifier) {
	e.printf("%s: %d\n", label, len(ids))
	for _, id := range ids {
		e.printf("  %s\n", id)
	}
}
