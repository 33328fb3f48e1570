// Package receipt turns digital receipts into price observations. Scanning
// paper receipts happens elsewhere; this package starts from structured
// lines or an HTML e-receipt.
package receipt

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

var (
	ErrNoLines  = errors.New("receipt has no line items")
	ErrBadPrice = errors.New("unreadable price")
)

// Line is one purchased item. Price is the line total.
type Line struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// Receipt is a parsed receipt. StoreID and ObservedAt may be empty when the
// source does not carry them.
type Receipt struct {
	StoreID    string
	ObservedAt int64
	Lines      []Line
}

// ParseHTML reads an HTML e-receipt. The store comes from the first element
// with a data-store-id attribute, the purchase time from the first
// time[datetime] element, and each .line-item row provides .name, .qty and
// either .price (line total) or .unit-price. A row's data-product-id names
// the product directly.
func ParseHTML(r io.Reader) (*Receipt, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse receipt html: %w", err)
	}

	rec := &Receipt{
		StoreID: strings.TrimSpace(doc.Find("[data-store-id]").First().AttrOr("data-store-id", "")),
	}
	if stamp, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		t, err := parseTime(stamp)
		if err != nil {
			return nil, err
		}
		rec.ObservedAt = t.Unix()
	}

	var lineErr error
	doc.Find(".line-item").EachWithBreak(func(i int, row *goquery.Selection) bool {
		line, err := parseRow(row)
		if err != nil {
			lineErr = fmt.Errorf("line %d: %w", i+1, err)
			return false
		}
		rec.Lines = append(rec.Lines, line)
		return true
	})
	if lineErr != nil {
		return nil, lineErr
	}
	if len(rec.Lines) == 0 {
		return nil, ErrNoLines
	}
	return rec, nil
}

func parseRow(row *goquery.Selection) (Line, error) {
	line := Line{
		ProductID: strings.TrimSpace(row.AttrOr("data-product-id", "")),
		Name:      strings.Join(strings.Fields(row.Find(".name").First().Text()), " "),
		Quantity:  1,
	}

	if qty := strings.TrimSpace(row.Find(".qty").First().Text()); qty != "" {
		n, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(qty), "x"))
		if err != nil || n < 1 {
			return Line{}, fmt.Errorf("bad quantity %q", qty)
		}
		line.Quantity = n
	}

	if sel := row.Find(".price").First(); sel.Length() > 0 {
		price, err := ParsePrice(sel.Text())
		if err != nil {
			return Line{}, err
		}
		line.Price = price
		return line, nil
	}
	if sel := row.Find(".unit-price").First(); sel.Length() > 0 {
		unit, err := ParsePrice(sel.Text())
		if err != nil {
			return Line{}, err
		}
		line.Price = unit.Mul(decimal.NewFromInt(int64(line.Quantity)))
		return line, nil
	}
	return Line{}, fmt.Errorf("%w: no price", ErrBadPrice)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad receipt time %q", s)
}

// ParsePrice reads a printed amount such as "R$ 4,49", "$1,234.50" or
// "12.90". A lone comma is a decimal separator.
func ParsePrice(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			return r
		}
		return -1
	}, s)

	dot, comma := strings.LastIndex(cleaned, "."), strings.LastIndex(cleaned, ",")
	switch {
	case comma > dot:
		// 1.234,56
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case comma >= 0:
		// 1,234.56
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w %q", ErrBadPrice, s)
	}
	return d, nil
}
