package engine

// Tables is the data-explorer dump: one slice per record type.
type Tables struct {
	Nodes         []Node              `json:"nodes"`
	SKUs          []SKU               `json:"skus"`
	Carriers      []Carrier           `json:"carriers"`
	Lanes         []Lane              `json:"lanes"`
	Shipments     []Shipment          `json:"shipments"`
	Inventory     []InventoryPosition `json:"inventory"`
	DemandHistory []DemandPoint       `json:"demandHistory"`
}

// ExportTables copies the record collections of state.
func ExportTables(state *DemoState) Tables {
	c := state.Clone()
	return Tables{
		Nodes:         c.Nodes,
		SKUs:          c.SKUs,
		Carriers:      c.Carriers,
		Lanes:         c.Lanes,
		Shipments:     c.Shipments,
		Inventory:     c.Inventory,
		DemandHistory: c.DemandHistory,
	}
}
