package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/go-restaurant-backend/internal/client"
	"github.com/tbourn/go-restaurant-backend/internal/domain"
	"github.com/tbourn/go-restaurant-backend/internal/export"
)

var prices = message.NewPrinter(language.Vietnamese)

func priceLabel(price int64) string {
	return prices.Sprintf("%d ₫", price*export.PriceUnit)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func renderTables(w io.Writer, date string, tables []domain.Table) error {
	fmt.Fprintf(w, "Tables on %s: %d\n", date, len(tables))
	if len(tables) == 0 {
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCODE\tDATE")
	for _, t := range tables {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", t.ID, t.Code, t.Date)
	}
	return tw.Flush()
}

func renderItems(w io.Writer, items []domain.Item) error {
	return renderItemRows(w, items, func(it domain.Item) string { return priceLabel(it.Price) })
}

// renderItemViews prints search hits with the server's price labels.
func renderItemViews(w io.Writer, views []client.ItemView) error {
	items := make([]domain.Item, len(views))
	labels := make(map[int64]string, len(views))
	for i, v := range views {
		items[i] = v.Item
		labels[v.ID] = v.PriceLabel
	}
	return renderItemRows(w, items, func(it domain.Item) string {
		if l := labels[it.ID]; l != "" {
			return l
		}
		return priceLabel(it.Price)
	})
}

func renderItemRows(w io.Writer, items []domain.Item, label func(domain.Item) string) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No items.")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCODE\tNAME\tCATEGORY\tPRICE")
	for _, it := range items {
		cat := "-"
		if it.Category != nil {
			cat = it.Category.Name
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", it.ID, it.Code, it.Name, cat, label(it))
	}
	return tw.Flush()
}
