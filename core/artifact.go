package core

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/EthelSakyi/SIRVariation/model"
)

// Artifact is the triple handed to the external renderer: the contact
// graph (node count plus edge list), the node positions, and the full
// per-step state history. States are encoded as "S"/"I"/"R" rows.
type Artifact struct {
	Nodes     int                     `json:"nodes"`
	Positions []model.Point           `json:"positions"`
	Edges     [][2]int                `json:"edges"`
	History   [][]model.EpidemicState `json:"history"`
}

// NewArtifact assembles the renderer artifact for one completed run.
func NewArtifact(g *ContactGraph, h History) *Artifact {
	hist := make([][]model.EpidemicState, len(h))
	for i, snap := range h {
		hist[i] = []model.EpidemicState(snap.Clone())
	}
	return &Artifact{
		Nodes:     g.NumNodes(),
		Positions: g.Positions(),
		Edges:     g.Edges(),
		History:   hist,
	}
}

// EncodeArtifact writes the artifact for (g, h) as JSON.
func EncodeArtifact(w io.Writer, g *ContactGraph, h History) error {
	if g == nil {
		return fmt.Errorf("EncodeArtifact: nil graph")
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(NewArtifact(g, h)); err != nil {
		return fmt.Errorf("EncodeArtifact: %w", err)
	}
	return nil
}

// DecodeArtifact reads an artifact previously written by EncodeArtifact.
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("DecodeArtifact: %w", err)
	}
	return &a, nil
}
