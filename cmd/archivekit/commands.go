package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kdsmith18542/archivekit/store"
)

func (a *app) backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List storage backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PLUGIN\tNAME\tTIER\tRETRIEVE\tENABLED\tAVAILABLE\tFREE")

			for _, desc := range a.registry.Descriptors() {
				name := desc.Name()
				if a.locale != "" {
					name = desc.DisplayName(a.locale)
				}
				enabled := store.Enabled(a.settings, desc.Plugin)
				available, free := "-", "-"
				if enabled {
					d, err := a.open(ctx, desc.Plugin, nil)
					if err != nil {
						available = "error"
					} else {
						available = yesNo(d.IsAvailable(ctx))
						if n, known := d.FreeBytes(ctx); known {
							free = formatBytes(n)
						} else {
							free = "unknown"
						}
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					desc.Plugin, name, desc.StorageTier, yesNo(desc.Retrievable), yesNo(enabled), available, free)
			}
			return w.Flush()
		},
	}
}

func (a *app) storeCmd() *cobra.Command {
	var backend, logicalPath, out string
	var jobID int64

	cmd := &cobra.Command{
		Use:   "store [file]",
		Short: "Store a file and print its handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := store.OpenFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			d, err := a.open(cmd.Context(), backend, nil)
			if err != nil {
				return err
			}
			h, err := d.Store(cmd.Context(), jobID, src, logicalPath)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(h, "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')
			if out != "" {
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("failed to write handle: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %s\n", h)
				return nil
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "localdir", "Storage plugin")
	cmd.Flags().Int64Var(&jobID, "job", 0, "Archive job id")
	cmd.Flags().StringVar(&logicalPath, "path", "", "Logical path below the backend root")
	cmd.Flags().StringVar(&out, "out", "", "Write the handle JSON to this file")
	return cmd
}

func (a *app) retrieveCmd() *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "retrieve [handle.json]",
		Short: "Restore the file referenced by a handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := readHandle(args[0])
			if err != nil {
				return err
			}
			d, err := a.open(cmd.Context(), h.Backend, store.DirMaterializer{Dir: dest})
			if err != nil {
				return err
			}

			target := h.RetrievalTarget()
			target.Path = ""
			f, err := d.Retrieve(cmd.Context(), h, target)
			if err != nil {
				return err
			}
			if osf, ok := f.(*store.OSFile); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %s (%d bytes)\n", osf.Path, f.Size())
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %s (%d bytes)\n", f.Filename(), f.Size())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "dest", ".", "Directory to restore into")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "delete [handle.json]",
		Short: "Delete the file referenced by a handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := readHandle(args[0])
			if err != nil {
				return err
			}
			d, err := a.open(cmd.Context(), h.Backend, nil)
			if err != nil {
				return err
			}
			if err := d.Delete(cmd.Context(), h, strict); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", h.Key())
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when the file is already gone")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [handle.json]",
		Short: "Check stored content against the handle checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := readHandle(args[0])
			if err != nil {
				return err
			}
			tmp, err := os.MkdirTemp("", "archivekit-verify-*")
			if err != nil {
				return err
			}
			defer os.RemoveAll(tmp)

			d, err := a.open(cmd.Context(), h.Backend, store.DirMaterializer{Dir: tmp})
			if err != nil {
				return err
			}
			if !d.SupportsRetrieve() {
				return store.NewError(store.KindUnsupported, "verify", h.Backend, h.Key(), fmt.Errorf("backend is write-only"))
			}
			f, err := d.Retrieve(cmd.Context(), h, store.RestoreTarget{JobID: h.JobID, Filename: h.Filename, MIMEType: h.MIMEType})
			if err != nil {
				return err
			}
			if err := store.VerifyFile(f, h.Checksum); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK %s %s\n", h.Checksum, h.Key())
			return nil
		},
	}
}

func (a *app) hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [file]",
		Short: "Print the SHA-256 of a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, _, err := store.ChecksumPath(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, filepath.Base(args[0]))
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
