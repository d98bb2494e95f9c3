package fixtureserver

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Seed describes the fixture world: compartments, the bundles sitting in
// them, rooms for reallocation, and the inspection plan.
type Seed struct {
	Slots     []SeedSlot     `yaml:"slots"`
	Bundles   []SeedBundle   `yaml:"bundles"`
	Rooms     []SeedRoom     `yaml:"rooms"`
	Schedules []SeedSchedule `yaml:"schedules"`
}

type SeedSlot struct {
	SlotId     string `yaml:"slotId"`
	SlotIndex  int    `yaml:"slotIndex"`
	SlotLetter string `yaml:"slotLetter"`
	FloorNo    int    `yaml:"floorNo"`
	Status     string `yaml:"status"`
	Locked     bool   `yaml:"locked"`
	Capacity   int    `yaml:"capacity"`
}

type SeedBundle struct {
	BundleId string     `yaml:"bundleId"`
	SlotId   string     `yaml:"slotId"`
	Name     string     `yaml:"name"`
	Label    string     `yaml:"label"`
	Units    []SeedUnit `yaml:"units"`
}

type SeedUnit struct {
	UnitId     string `yaml:"unitId"`
	Name       string `yaml:"name"`
	ExpiryDate string `yaml:"expiryDate"`
}

type SeedRoom struct {
	RoomId  string `yaml:"roomId"`
	FloorNo int    `yaml:"floorNo"`
}

type SeedSchedule struct {
	ScheduleId  string `yaml:"scheduleId"`
	ScheduledAt string `yaml:"scheduledAt"`
	Title       string `yaml:"title"`
	Status      string `yaml:"status"`
	SlotId      string `yaml:"slotId"`
	FloorNo     int    `yaml:"floorNo"`
}

// LoadSeed reads a YAML seed file. Empty path falls back to the built-in
// two-compartment world.
func LoadSeed(path string) (*Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(seed.Slots) == 0 {
		return nil, fmt.Errorf("seed file %s declares no slots", path)
	}
	return &seed, nil
}

// DefaultSeed is a small floor-3 world with one expired unit, enough to walk
// the whole inspection flow by hand.
func DefaultSeed() *Seed {
	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	nextWeek := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	tomorrow := time.Now().AddDate(0, 0, 1).Format(time.RFC3339)
	return &Seed{
		Slots: []SeedSlot{
			{SlotId: "slot-3a", SlotIndex: 1, SlotLetter: "A", FloorNo: 3, Status: "ACTIVE", Capacity: 4},
			{SlotId: "slot-3b", SlotIndex: 2, SlotLetter: "B", FloorNo: 3, Status: "ACTIVE", Capacity: 4},
			{SlotId: "slot-3c", SlotIndex: 3, SlotLetter: "C", FloorNo: 3, Status: "SUSPENDED", Capacity: 4},
		},
		Bundles: []SeedBundle{
			{
				BundleId: "bundle-1", SlotId: "slot-3a", Name: "Room 301 groceries", Label: "301",
				Units: []SeedUnit{
					{UnitId: "unit-1", Name: "Milk 1L", ExpiryDate: yesterday},
					{UnitId: "unit-2", Name: "Yogurt pack", ExpiryDate: nextWeek},
				},
			},
			{
				BundleId: "bundle-2", SlotId: "slot-3a", Name: "Room 302 leftovers", Label: "302",
				Units: []SeedUnit{
					{UnitId: "unit-3", Name: "Curry container", ExpiryDate: nextWeek},
				},
			},
		},
		Rooms: []SeedRoom{
			{RoomId: "room-301", FloorNo: 3},
			{RoomId: "room-302", FloorNo: 3},
			{RoomId: "room-303", FloorNo: 3},
			{RoomId: "room-304", FloorNo: 3},
		},
		Schedules: []SeedSchedule{
			{ScheduleId: "sched-1", ScheduledAt: tomorrow, Title: "Weekly fridge round", Status: "SCHEDULED", SlotId: "slot-3a", FloorNo: 3},
		},
	}
}
