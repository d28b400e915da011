// Package wire defines the three payload shapes the bus carries — info,
// orders, and sheriff-cmd — and their codec. Field ordering and types
// mirror the deputy's expectations (spec §6); this implementation
// transports them as JSON objects rather than the original's raw binary
// LCM layout (see DESIGN.md and SPEC_FULL.md §9 for why).
package wire

import (
	"encoding/json"
	"fmt"
)

// Info is published by a deputy, consumed by the sheriff's Reconciliation
// Engine (spec §6 PMD_INFO).
type Info struct {
	UTime        int64         `json:"utime"`
	Host         string        `json:"host"`
	CPULoad      float64       `json:"cpu_load"`
	PhysMemTotal uint64        `json:"phys_mem_total_bytes"`
	PhysMemFree  uint64        `json:"phys_mem_free_bytes"`
	Commands     []InfoCommand `json:"commands"`
}

// InfoCommand is one per-command record inside an Info payload.
type InfoCommand struct {
	SheriffID     uint32  `json:"sheriff_id"`
	Name          string  `json:"name"`
	Nickname      string  `json:"nickname"`
	Group         string  `json:"group"`
	PID           int32   `json:"pid"`
	ActualRunID   uint32  `json:"actual_runid"`
	ExitCode      int32   `json:"exit_code"`
	CPUUsage      float64 `json:"cpu_usage"`
	MemVsizeBytes uint64  `json:"mem_vsize_bytes"`
	MemRSSBytes   uint64  `json:"mem_rss_bytes"`
}

// Orders is published by the sheriff (or mirrored observer↔observer),
// consumed by deputies and observer sheriffs (spec §6 PMD_ORDERS).
type Orders struct {
	UTime       int64           `json:"utime"`
	Host        string          `json:"host"` // target deputy
	SheriffName string          `json:"sheriff_name"`
	Commands    []OrdersCommand `json:"commands"`
	VarNames    []string        `json:"varnames"`
	VarVals     []string        `json:"varvals"`
}

// OrdersCommand is one per-command record inside an Orders payload.
type OrdersCommand struct {
	SheriffID    uint32 `json:"sheriff_id"`
	Name         string `json:"name"`
	Nickname     string `json:"nickname"`
	Group        string `json:"group"`
	DesiredRunID uint32 `json:"desired_runid"`
	ForceQuit    bool   `json:"force_quit"`
}

// SheriffCmd is an ad hoc out-of-band directive sheriffs may exchange
// (e.g. interactive console relay); kept minimal, per spec §6's mention
// of the shape without prescribing its contents beyond "sheriff-cmd".
type SheriffCmd struct {
	UTime       int64  `json:"utime"`
	SheriffName string `json:"sheriff_name"`
	Command     string `json:"command"`
}

// DecodeError wraps a malformed payload. Per spec §7, decode errors are
// absorbed at the dispatcher — logged and dropped, never surfaced past
// the caller that does the dropping.
type DecodeError struct {
	Shape string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: malformed %s payload: %v", e.Shape, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeInfo/DecodeInfo, EncodeOrders/DecodeOrders, EncodeSheriffCmd/
// DecodeSheriffCmd are the three codec pairs.

func EncodeInfo(i Info) ([]byte, error) {
	return json.Marshal(i)
}

func DecodeInfo(b []byte) (Info, error) {
	var i Info
	if err := json.Unmarshal(b, &i); err != nil {
		return Info{}, &DecodeError{Shape: "info", Err: err}
	}
	return i, nil
}

func EncodeOrders(o Orders) ([]byte, error) {
	return json.Marshal(o)
}

func DecodeOrders(b []byte) (Orders, error) {
	var o Orders
	if err := json.Unmarshal(b, &o); err != nil {
		return Orders{}, &DecodeError{Shape: "orders", Err: err}
	}
	return o, nil
}

func EncodeSheriffCmd(c SheriffCmd) ([]byte, error) {
	return json.Marshal(c)
}

func DecodeSheriffCmd(b []byte) (SheriffCmd, error) {
	var c SheriffCmd
	if err := json.Unmarshal(b, &c); err != nil {
		return SheriffCmd{}, &DecodeError{Shape: "sheriff-cmd", Err: err}
	}
	return c, nil
}
