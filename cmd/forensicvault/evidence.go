package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"forensicvault/internal/blob"
	"forensicvault/internal/core"
	"forensicvault/internal/custody"
	"forensicvault/pkg/domain"

	"github.com/spf13/cobra"
)

func (a *app) evidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "evidence",
		Aliases: []string{"ev"},
		Short:   "Register evidence, record custody transfers and attach content",
	}
	cmd.AddCommand(
		a.evidenceCreateCmd(),
		a.evidenceShowCmd(),
		a.evidenceListCmd(),
		a.evidenceRenumberCmd(),
		a.evidenceDeleteCmd(),
		a.evidenceTransferCmd(),
		a.evidenceBulkTransferCmd(),
		a.evidenceHistoryCmd(),
		a.evidenceAttachCmd(),
		a.evidenceUploadCmd(),
		a.evidenceAttachBlobCmd(),
		a.evidenceContentURLCmd(),
	)
	return cmd
}

func (a *app) evidenceCreateCmd() *cobra.Command {
	var in domain.Evidence
	var caseRef, deviceType, status, state string
	var attrs []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an evidence item, optionally under a case",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if caseRef != "" {
				c, err := resolveCase(ctx, a.service(), caseRef)
				if err != nil {
					return err
				}
				in.CaseID = &c.ID
			}
			data, err := parseAttrs(attrs)
			if err != nil {
				return err
			}
			in.DeviceType = domain.DeviceType(deviceType)
			in.Status = domain.EvidenceStatus(status)
			in.State = domain.EvidenceState(state)
			in.DeviceData = data
			created, res, err := a.service().CreateEvidence(ctx, in)
			if err != nil {
				return err
			}
			return a.printResult(created, res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&caseRef, "case", "", "case number or id")
	f.StringVar(&in.EvidenceNumber, "number", "", "explicit evidence number")
	f.StringVar(&deviceType, "device-type", "", "device type, e.g. computer, mobile, storage")
	f.StringVar(&in.ItemName, "item", "", "item name (defaults to the device label)")
	f.StringVar(&in.Description, "description", "", "description")
	f.StringVar(&in.Brand, "brand", "", "brand")
	f.StringVar(&in.Model, "model", "", "model")
	f.StringVar(&in.SerialNumber, "serial", "", "serial number")
	f.StringVar(&in.IMEI, "imei", "", "primary IMEI")
	f.StringVar(&status, "status", "", "examination status")
	f.StringVar(&state, "state", "", "clean, dirty or damaged")
	f.StringVar(&in.StorageLocation, "location", "", "storage location")
	f.StringVar(&in.CollectedBy, "collected-by", "", "collecting officer")
	f.StringVar(&in.CurrentDepartment, "department", "", "initial holding department")
	f.StringVar(&in.ReceivedBy, "received-by", "", "receiving officer")
	f.StringArrayVar(&attrs, "attr", nil, "device attribute key=value (repeatable)")
	f.StringSliceVar(&in.Tags, "tag", nil, "tag (repeatable)")
	return cmd
}

func (a *app) evidenceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <evidence number or id>",
		Short: "Show an evidence item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEvidence(cmd.Context(), a.service(), args[0])
			if err != nil {
				return err
			}
			return a.print(e)
		},
	}
}

func (a *app) evidenceListCmd() *cobra.Command {
	var caseRef, department string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List evidence, optionally by case or holding department",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc := a.service()
			var (
				items []domain.Evidence
				err   error
			)
			switch {
			case caseRef != "":
				c, cerr := resolveCase(ctx, svc, caseRef)
				if cerr != nil {
					return cerr
				}
				items, err = svc.ListCaseEvidence(ctx, c.ID)
			case cmd.Flags().Changed("department"):
				items, err = svc.ListEvidenceByDepartment(ctx, department)
			default:
				items, err = svc.ListEvidence(ctx)
			}
			if err != nil {
				return err
			}
			if items == nil {
				items = []domain.Evidence{}
			}
			return a.print(items)
		},
	}
	cmd.Flags().StringVar(&caseRef, "case", "", "case number or id")
	cmd.Flags().StringVar(&department, "department", "", "holding department; empty selects items without one")
	return cmd
}

func (a *app) evidenceRenumberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renumber <evidence number or id> <new number>",
		Short: "Replace an evidence number",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEvidence(cmd.Context(), a.service(), args[0])
			if err != nil {
				return err
			}
			updated, res, err := a.service().RenumberEvidence(cmd.Context(), e.ID, args[1])
			if err != nil {
				return err
			}
			return a.printResult(updated, res)
		},
	}
}

func (a *app) evidenceDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <evidence number or id>",
		Short: "Delete an evidence item and its custody ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEvidence(cmd.Context(), a.service(), args[0])
			if err != nil {
				return err
			}
			res, err := a.service().DeleteEvidence(cmd.Context(), e.ID)
			if err != nil {
				return err
			}
			return a.printResult(map[string]string{"deleted": e.ID}, res)
		},
	}
}

func transferFlags(cmd *cobra.Command, req *custody.Request) {
	f := cmd.Flags()
	f.StringVar(&req.ToDepartment, "to", "", "receiving department")
	f.StringVar(&req.TransferredBy, "by", "", "officer handing over")
	f.StringVar(&req.ReceivedBy, "received-by", "", "officer receiving")
	f.StringVar(&req.Notes, "notes", "", "transfer notes")
	_ = cmd.MarkFlagRequired("to")
}

func (a *app) evidenceTransferCmd() *cobra.Command {
	var req custody.Request
	var automatic bool
	cmd := &cobra.Command{
		Use:   "transfer <evidence number or id>",
		Short: "Record a custody transfer to another department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEvidence(cmd.Context(), a.service(), args[0])
			if err != nil {
				return err
			}
			req.Mode = custody.ModeManual
			if automatic {
				req.Mode = custody.ModeAutomatic
			}
			updated, res, err := a.service().UpdateDepartment(cmd.Context(), e.ID, req)
			if err != nil {
				return err
			}
			return a.printResult(updated, res)
		},
	}
	transferFlags(cmd, &req)
	cmd.Flags().BoolVar(&automatic, "skip-unchanged", false, "do nothing when the item is already held by --to")
	return cmd
}

func (a *app) evidenceBulkTransferCmd() *cobra.Command {
	var req custody.Request
	cmd := &cobra.Command{
		Use:   "bulk-transfer <evidence id>...",
		Short: "Transfer several items at once; unknown ids are skipped",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.service().BulkTransfer(cmd.Context(), args, req)
			if err != nil {
				return err
			}
			return a.print(map[string]int{"transferred": n})
		},
	}
	transferFlags(cmd, &req)
	return cmd
}

func (a *app) evidenceHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <evidence number or id>",
		Short: "Show the chain of custody, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEvidence(cmd.Context(), a.service(), args[0])
			if err != nil {
				return err
			}
			history, err := a.service().ListCustodyHistory(cmd.Context(), e.ID)
			if err != nil {
				return err
			}
			if history == nil {
				history = []domain.CustodyTransfer{}
			}
			return a.print(history)
		},
	}
}

func (a *app) evidenceAttachCmd() *cobra.Command {
	var key, contentType string
	cmd := &cobra.Command{
		Use:   "attach <evidence number or id> <file>",
		Short: "Fingerprint a local file and reference it from the evidence",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEvidence(cmd.Context(), a.service(), args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[1]) // #nosec G304: operator supplied path
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			updated, res, err := a.service().AttachContentStream(cmd.Context(), e.ID, f, core.ContentOptions{
				Key:         key,
				Name:        filepath.Base(args[1]),
				ContentType: contentType,
			})
			if err != nil {
				return err
			}
			return a.printResult(updated, res)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "external content reference")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type")
	return cmd
}

func (a *app) evidenceUploadCmd() *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "upload <evidence number or id> <file>",
		Short: "Store a local file in the content store and fingerprint it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEvidence(cmd.Context(), a.service(), args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[1]) // #nosec G304: operator supplied path
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			updated, res, err := a.service().UploadContent(cmd.Context(), e.ID, filepath.Base(args[1]), contentType, f)
			if err != nil {
				return err
			}
			return a.printResult(updated, res)
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type")
	return cmd
}

func (a *app) evidenceAttachBlobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach-blob <evidence number or id> <key>",
		Short: "Reference an object already in the content store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEvidence(cmd.Context(), a.service(), args[0])
			if err != nil {
				return err
			}
			updated, res, err := a.service().AttachBlob(cmd.Context(), e.ID, args[1])
			if err != nil {
				return err
			}
			return a.printResult(updated, res)
		},
	}
}

func (a *app) evidenceContentURLCmd() *cobra.Command {
	var expiry time.Duration
	cmd := &cobra.Command{
		Use:   "content-url <evidence number or id>",
		Short: "Print a time-limited download URL for the evidence content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := resolveEvidence(ctx, a.service(), args[0])
			if err != nil {
				return err
			}
			if e.Content.Key == "" {
				return fmt.Errorf("evidence %s has no stored content", e.EvidenceNumber)
			}
			store := a.service().BlobStore()
			if store == nil {
				return core.ErrNoBlobStore
			}
			url, err := store.PresignURL(ctx, e.Content.Key, blob.SignedURLOptions{Expiry: expiry})
			if errors.Is(err, blob.ErrUnsupported) {
				return fmt.Errorf("%s content store cannot sign URLs: %w", store.Driver(), err)
			}
			if err != nil {
				return err
			}
			return a.print(map[string]any{"url": url, "key": e.Content.Key, "stale": e.Content.Stale()})
		},
	}
	cmd.Flags().DurationVar(&expiry, "expiry", blob.DefaultURLExpiry, "URL lifetime")
	return cmd
}

// resolveEvidence accepts an evidence number or an id.
func resolveEvidence(ctx context.Context, svc *core.Service, ref string) (domain.Evidence, error) {
	e, err := svc.FindEvidenceByNumber(ctx, ref)
	if isNotFound(err) {
		return svc.GetEvidence(ctx, ref)
	}
	return e, err
}
