// Package review provides an interactive browser over the diagnostic
// records a run left behind.
package review

import (
	"fmt"
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/AngHelll/AutomationFrameworkP/diagnostic"
	"github.com/AngHelll/AutomationFrameworkP/utils"
)

const messageWidth = 48

// Browse renders the records of the sink directory in a table. Esc
// quits, Enter on a row toggles the full failure message.
func Browse(dir string) error {
	records, err := diagnostic.ReadRecords(dir)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no diagnostic records found in %s", dir)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	show(records)
	return nil
}

// tableRows shapes records into the cells the table displays, header
// first.
func tableRows(records []diagnostic.Record) [][]string {
	rows := [][]string{{"TIME", "SESSION", "OPERATION", "CONTEXT", "MESSAGE", "SCREENSHOT"}}
	for _, rec := range records {
		rows = append(rows, []string{
			rec.Timestamp.Format("15:04:05"),
			utils.ShortenString(rec.Session, 12),
			rec.Operation,
			utils.ShortenString(rec.Context, 24),
			utils.ShortenString(rec.Message, messageWidth),
			rec.ScreenshotPath,
		})
	}
	return rows
}

func show(records []diagnostic.Record) {
	app := tview.NewApplication()
	table := tview.NewTable().SetBorders(true)

	for r, row := range tableRows(records) {
		for c, text := range row {
			color := tcell.ColorWhite
			align := tview.AlignLeft
			if r == 0 {
				color = tcell.ColorBlue
				align = tview.AlignCenter
			} else if c == 2 {
				color = tcell.ColorRed
			}
			table.SetCell(r, c, tview.NewTableCell(text).
				SetTextColor(color).
				SetAlign(align))
		}
	}

	expanded := map[int]bool{}
	table.SetSelectable(true, false)
	table.Select(1, 0).SetFixed(1, 0).SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			app.Stop()
		}
	}).SetSelectedFunc(func(row int, column int) {
		if row < 1 {
			return
		}
		rec := records[row-1]
		expanded[row] = !expanded[row]
		if expanded[row] {
			table.GetCell(row, 4).SetText(rec.Message)
			table.GetCell(row, 0).SetTextColor(tcell.ColorOrange)
		} else {
			table.GetCell(row, 4).SetText(utils.ShortenString(rec.Message, messageWidth))
			table.GetCell(row, 0).SetTextColor(tcell.ColorWhite)
		}
	})

	if err := app.SetRoot(table, true).SetFocus(table).Run(); err != nil {
		panic(err)
	}
}
