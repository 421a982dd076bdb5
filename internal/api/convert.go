package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cellar/internal/reconcile"
	"cellar/internal/services"
	"cellar/internal/store"
)

const (
	minVintage = 1800
	maxVintage = 2200
)

// FromWine converts a store record to its API representation.
func FromWine(wine store.Wine) Wine {
	dto := Wine{
		ID:          wine.ID,
		UPC:         wine.UPC,
		Producer:    wine.Producer,
		Label:       wine.Label,
		Vintage:     wine.Vintage,
		Region:      wine.Region,
		Country:     wine.Country,
		DrinkFrom:   formatDate(wine.DrinkFrom),
		DrinkTo:     formatDate(wine.DrinkTo),
		Placeholder: wine.IsPlaceholder(),
	}
	if len(wine.CriticData) > 0 {
		dto.CriticData = wine.CriticData
	}
	if !wine.CreatedAt.IsZero() {
		dto.CreatedAt = wine.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !wine.UpdatedAt.IsZero() {
		dto.UpdatedAt = wine.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromWineListings converts list rows into summaries.
func FromWineListings(listings []store.WineListing) []WineSummary {
	out := make([]WineSummary, 0, len(listings))
	for _, listing := range listings {
		out = append(out, WineSummary{Wine: FromWine(listing.Wine), BottleCount: listing.BottleCount})
	}
	return out
}

// FromBottle converts a bottle record.
func FromBottle(bottle store.Bottle) Bottle {
	dto := Bottle{
		ID:            bottle.ID,
		WineID:        bottle.WineID,
		PurchasePrice: bottle.PurchasePrice,
		Slot:          bottle.Slot,
	}
	if !bottle.CreatedAt.IsZero() {
		dto.CreatedAt = bottle.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromBottles converts bottle records. The result is never nil.
func FromBottles(bottles []store.Bottle) []Bottle {
	out := make([]Bottle, 0, len(bottles))
	for _, bottle := range bottles {
		out = append(out, FromBottle(bottle))
	}
	return out
}

// FromLabelTask converts a task record.
func FromLabelTask(task store.LabelTask) LabelTask {
	dto := LabelTask{
		ID:     task.ID,
		Status: string(task.Status),
		Error:  task.Error,
	}
	if len(task.Payload) > 0 {
		dto.Payload = task.Payload
	}
	if !task.CreatedAt.IsZero() {
		dto.CreatedAt = task.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !task.UpdatedAt.IsZero() {
		dto.UpdatedAt = task.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromLabelTasks converts task records. The result is never nil.
func FromLabelTasks(tasks []store.LabelTask) []LabelTask {
	out := make([]LabelTask, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromLabelTask(task))
	}
	return out
}

// FromStats converts store counts, reporting every task status even when zero.
func FromStats(stats store.Stats) CellarStats {
	tasks := make(map[string]int, len(store.AllTaskStatuses()))
	for _, status := range store.AllTaskStatuses() {
		tasks[string(status)] = stats.LabelTasks[status]
	}
	return CellarStats{
		Wines:        stats.Wines,
		Placeholders: stats.Placeholders,
		Bottles:      stats.Bottles,
		LabelTasks:   tasks,
	}
}

// ToWinePatch validates a manual edit and converts it to a store patch.
func ToWinePatch(req WinePatchRequest) (store.WinePatch, error) {
	patch := store.WinePatch{
		Producer: req.Producer,
		Label:    req.Label,
		Region:   req.Region,
		Country:  req.Country,
	}
	if req.UPC != nil && strings.TrimSpace(*req.UPC) != "" {
		upc, err := reconcile.NormalizeBarcode(*req.UPC)
		if err != nil {
			return store.WinePatch{}, err
		}
		patch.UPC = &upc
	} else {
		patch.UPC = req.UPC
	}
	if req.Vintage != nil {
		if *req.Vintage < minVintage || *req.Vintage > maxVintage {
			return store.WinePatch{}, invalidPatch(fmt.Sprintf("vintage %d out of range", *req.Vintage))
		}
		patch.Vintage = req.Vintage
	}
	var err error
	if patch.DrinkFrom, err = parseDate("drinkFrom", req.DrinkFrom); err != nil {
		return store.WinePatch{}, err
	}
	if patch.DrinkTo, err = parseDate("drinkTo", req.DrinkTo); err != nil {
		return store.WinePatch{}, err
	}
	if patch.DrinkFrom != nil && patch.DrinkTo != nil && patch.DrinkTo.Before(*patch.DrinkFrom) {
		return store.WinePatch{}, invalidPatch("drinkTo is before drinkFrom")
	}
	if len(req.CriticData) > 0 {
		if !json.Valid(req.CriticData) {
			return store.WinePatch{}, invalidPatch("criticData is not valid JSON")
		}
		patch.CriticData = req.CriticData
	}

	empty := ""
	for _, field := range req.Clear {
		switch strings.TrimSpace(field) {
		case "upc":
			patch.UPC = &empty
		case "producer":
			patch.Producer = &empty
		case "label":
			patch.Label = &empty
		case "region":
			patch.Region = &empty
		case "country":
			patch.Country = &empty
		case "vintage":
			patch.Vintage = nil
			patch.ClearVintage = true
		case "drinkFrom":
			patch.DrinkFrom = nil
			patch.ClearDrinkFrom = true
		case "drinkTo":
			patch.DrinkTo = nil
			patch.ClearDrinkTo = true
		default:
			return store.WinePatch{}, invalidPatch(fmt.Sprintf("unknown field %q in clear", field))
		}
	}
	if patch.IsEmpty() {
		return store.WinePatch{}, invalidPatch("no fields to update")
	}
	return patch, nil
}

func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	parsed, err := time.Parse(dateFormat, strings.TrimSpace(*value))
	if err != nil {
		return nil, invalidPatch(fmt.Sprintf("%s must be YYYY-MM-DD", field))
	}
	return &parsed, nil
}

func formatDate(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := value.Format(dateFormat)
	return &formatted
}

func invalidPatch(message string) error {
	return services.Wrap(services.ErrValidation, "api", "update wine", message, nil)
}
