package rendering

import "github.com/jonathan/deliverable-builder/internal/types"

func sampleDeliverable() *types.Deliverable {
	return &types.Deliverable{
		Title:        "Lab 3: Pendulum Motion",
		AssignmentID: "asg-42",
		Summary:      "Measures the period of a simple pendulum & compares it with theory.",
		Sections: []types.Section{
			{Heading: "Introduction", Body: "A pendulum swings.\nIts period depends on length."},
			{Heading: "Method <draft>", Body: "We timed 10 swings (three trials) at each length."},
		},
		Citations: []types.Citation{
			{Label: "Halliday", URL: "https://example.com/physics?a=1&b=2"},
		},
		Metadata: types.DeliverableMetadata{Course: "PHYS 101", DueAtISO: "2025-05-01T23:59:00Z"},
	}
}
