package autopilot

// GuidedStep is one stop of the guided tour.
type GuidedStep struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Route         string   `json:"route"`
	Objective     string   `json:"objective"`
	TalkTrack     []string `json:"talkTrack"`
	PrimaryAction string   `json:"primaryAction,omitempty"`
}

// GuidedSteps is the fixed tour, in order.
var GuidedSteps = []GuidedStep{
	{
		ID:        "exec",
		Title:     "Executive Brief",
		Route:     "/api/brief",
		Objective: "Top questions, their answers and the recommended next action.",
		TalkTrack: []string{
			"Signals are translated into decisions, prioritized by dollars and service risk.",
			"Each answer proposes a next best action that can be executed from the control tower.",
		},
		PrimaryAction: "Open Executive Brief",
	},
	{
		ID:        "tower",
		Title:     "Control Tower",
		Route:     "/api/exceptions",
		Objective: "Ranked exceptions and one approved action with explainability.",
		TalkTrack: []string{
			"Exceptions are ranked by value-at-risk first, then risk score.",
			"Re-tender options are ranked by expected total cost = freight + late probability x penalty.",
			"Approving an action updates shipments or inventory and writes an audit entry.",
		},
		PrimaryAction: "Open Control Tower",
	},
	{
		ID:        "inv",
		Title:     "Inventory Rebalancing",
		Route:     "/api/rebalance/proposals",
		Objective: "Days-of-cover, net-value transfers and policy guardrails.",
		TalkTrack: []string{
			"Days-of-cover uses the next-7-day forecast against on-hand plus in-transit.",
			"Transfers are ranked by net value = benefit - transfer cost.",
			"Guardrails: daily spend cap, max transfers per batch, approval threshold.",
		},
		PrimaryAction: "Open Inventory",
	},
	{
		ID:        "trans",
		Title:     "Transportation Decisions",
		Route:     "/api/shipments",
		Objective: "Carrier tradeoffs and re-tender logic under disruption.",
		TalkTrack: []string{
			"Carriers are scored by on-time probability and rate adjustment; late risk is recomputed under scenarios.",
			"Expected total cost unifies service and cost in one number.",
		},
		PrimaryAction: "Open Transportation",
	},
	{
		ID:        "scen",
		Title:     "Scenario Simulator",
		Route:     "/api/scenario",
		Objective: "Disruptions re-rank priorities and trigger playbooks.",
		TalkTrack: []string{
			"Toggle a disruption: DC outage, carrier disruption, demand spike or cyber degraded mode.",
			"Run live and watch exceptions and KPIs shift.",
		},
		PrimaryAction: "Open Scenarios",
	},
	{
		ID:        "net",
		Title:     "Network View",
		Route:     "/api/network",
		Objective: "Where stress concentrates and the dominant flows.",
		TalkTrack: []string{
			"Plants and DCs with stress from low cover and disruptions.",
			"The most active lanes, including inter-DC pooling moves.",
		},
		PrimaryAction: "Open Network",
	},
}
