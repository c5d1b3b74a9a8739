package coremodel

// CellTower 基站信息
type CellTower struct {
	MCC    int  `json:"mcc"`
	MNC    int  `json:"mnc"`
	LAC    int  `json:"lac"`
	CID    int  `json:"cid"`
	Signal *int `json:"signal,omitempty"`
}

// NewCellTower 带信号强度的基站
func NewCellTower(mcc, mnc, lac, cid, signal int) CellTower {
	return CellTower{MCC: mcc, MNC: mnc, LAC: lac, CID: cid, Signal: &signal}
}

// CellTowerFromLacCid 只有 LAC/CID 的基站（MCC/MNC 未知）
func CellTowerFromLacCid(lac, cid int) CellTower {
	return CellTower{LAC: lac, CID: cid}
}

// Network 邻区基站列表（按上报顺序）
type Network struct {
	CellTowers []CellTower `json:"cell_towers"`
}

func (n *Network) AddCellTower(c CellTower) { n.CellTowers = append(n.CellTowers, c) }
