package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rd-agent/backend/internal/unpaywall"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ProcessPDF looks up an open access copy of the article, stores it and
// records the object key. Articles without one are acked and left alone.
func (w *Worker) ProcessPDF(ctx context.Context, body []byte) error {
	var msg PDFMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		queueLog.Error("Dropping malformed pdf message", "err", err)
		return nil
	}
	if !w.Flags.PDFFetch {
		queueLog.Debug("PDF fetching disabled", "pmid", msg.ArticlePmid)
		return nil
	}

	article, err := w.Store.GetArticle(ctx, msg.ArticlePmid)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load article: %w", err)
	}
	if article.PdfKey.Valid {
		return nil
	}
	if article.Doi == "" {
		queueLog.Info("Article has no DOI, no PDF lookup", "pmid", article.Pmid)
		return nil
	}

	pdfURL, err := w.PDFSource.PDFURL(ctx, article.Doi)
	if errors.Is(err, unpaywall.ErrNoOpenAccess) {
		queueLog.Info("No open access PDF", "pmid", article.Pmid, "doi", article.Doi)
		return nil
	}
	if err != nil {
		return err
	}

	data, err := w.PDFSource.Download(ctx, pdfURL)
	if errors.Is(err, unpaywall.ErrNotPDF) {
		queueLog.Info("Open access link is not a PDF", "pmid", article.Pmid, "url", pdfURL)
		return nil
	}
	if err != nil {
		return err
	}

	key, err := w.Objects.PutPDF(ctx, article.Pmid, data)
	if err != nil {
		return err
	}
	if err := w.Store.SetArticlePdfKey(ctx, pgdb.SetArticlePdfKeyParams{
		Pmid:   article.Pmid,
		PdfKey: pgtype.Text{String: key, Valid: true},
	}); err != nil {
		if delErr := w.Objects.DeleteArticleFiles(ctx, article.Pmid); delErr != nil {
			queueLog.Warn("Failed to remove orphaned PDF", "pmid", article.Pmid, "err", delErr)
		}
		return fmt.Errorf("failed to store pdf key: %w", err)
	}

	queueLog.Info("Stored PDF", "pmid", article.Pmid, "key", key, "bytes", len(data))
	return nil
}
