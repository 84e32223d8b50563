package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/clubhouse/internal/model"
)

type MemberWriter interface {
	FindByBadge(badge string) (*model.Member, error)
	FindByCard(card string) (*model.Member, error)
	Create(f model.MemberFields) (*model.Member, error)
	Update(id int64, f model.MemberFields) (*model.Member, error)
}

type RowError struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

type Result struct {
	Source  string     `json:"source"`
	Added   int        `json:"added"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors,omitempty"`
}

type Importer struct {
	members MemberWriter
	logger  *slog.Logger
}

func New(members MemberWriter, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{members: members, logger: logger}
}

// Import upserts every row of src. Rows are matched to active members by
// badge number, or by internal card when the row has no badge. A row that
// fails validation is skipped and reported; the rest of the import goes on.
func (im *Importer) Import(ctx context.Context, src Source) (*Result, error) {
	rows, err := src.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name(), err)
	}

	res := &Result{Source: src.Name()}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		added, err := im.importRow(row)
		if err != nil {
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				return res, fmt.Errorf("line %d: %w", row.Line, err)
			}
			res.Skipped++
			res.Errors = append(res.Errors, RowError{Line: row.Line, Err: err.Error()})
			continue
		}
		if added {
			res.Added++
		} else {
			res.Updated++
		}
	}

	im.logger.Info("import finished",
		"source", res.Source,
		"added", res.Added,
		"updated", res.Updated,
		"skipped", res.Skipped,
	)
	return res, nil
}

func (im *Importer) importRow(row Row) (added bool, err error) {
	badge := row.Get("badge_number")
	card := row.Get("card_internal")
	if badge == "" && card == "" {
		return false, &model.ValidationError{Field: "badge_number", Message: "row has neither a badge nor a card number"}
	}

	var existing *model.Member
	if badge != "" {
		existing, err = im.members.FindByBadge(badge)
	} else {
		existing, err = im.members.FindByCard(card)
	}
	if err != nil {
		return false, err
	}

	var base model.MemberFields
	if existing != nil {
		base = existing.MemberFields
	} else {
		base.MembershipType = model.MembershipProspective
	}
	fields, err := merge(base, row)
	if err != nil {
		return false, err
	}

	if existing != nil {
		_, err = im.members.Update(existing.ID, fields)
		return false, err
	}
	_, err = im.members.Create(fields)
	return true, err
}

// merge overwrites base with every non-empty cell in row.
func merge(base model.MemberFields, row Row) (model.MemberFields, error) {
	text := map[string]*string{
		"badge_number":  &base.BadgeNumber,
		"first_name":    &base.FirstName,
		"last_name":     &base.LastName,
		"email":         &base.Email,
		"email2":        &base.Email2,
		"phone":         &base.Phone,
		"address":       &base.Address,
		"city":          &base.City,
		"state":         &base.State,
		"zip":           &base.Zip,
		"sponsor":       &base.Sponsor,
		"card_internal": &base.CardInternal,
		"card_external": &base.CardExternal,
	}
	for column, dst := range text {
		if v := row.Get(column); v != "" {
			*dst = v
		}
	}

	if v := row.Get("membership_type"); v != "" {
		t, err := model.ParseMembershipType(v)
		if err != nil {
			return base, err
		}
		base.MembershipType = t
	}

	dates := map[string]*model.Date{
		"dob":       &base.DOB,
		"join_date": &base.JoinDate,
	}
	for column, dst := range dates {
		v := row.Get(column)
		if v == "" {
			continue
		}
		d, err := model.ParseDate(v)
		if err != nil {
			return base, &model.ValidationError{Field: column, Message: fmt.Sprintf("invalid date %q", v)}
		}
		*dst = d
	}
	return base, nil
}
