package main

import (
	"strconv"

	"intake/internal/api"
	"intake/internal/queue"
)

// buildQueueStatusRows renders stats in the canonical status order, dropping
// zero-count rows.
func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		count, ok := stats[string(status)]
		if !ok || count == 0 {
			continue
		}
		rows = append(rows, []string{string(status), strconv.Itoa(count)})
	}
	return rows
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		name := item.Name
		if name == "" {
			name = item.SourcePath
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.DeliveryID,
			name,
			item.ItemType,
			item.Status,
			item.CreatedAt,
		})
	}
	return rows
}
