package matrix

// Default returns the built-in matrix for the quantum-dot/Majorana transport
// solver: the phase sweep, the coupling sweep, and the conductance
// decomposition at fixed parameters.
func Default() *Registry {
	r, err := NewRegistry(
		TestCase{
			ID:          1,
			Name:        "DOS_vs_phi",
			Description: "DOS versus magnetic flux phase φ with non-overlapping MBSs",
			Purpose:     "Verify how the DOS evolves with the flux phase φ when the MBSs do not overlap (ε_M = 0).",
			Expected:    "The DOS shows a characteristic peak near φ = π.",
			Params: []Param{
				Scalar("em", Float(0.0)),
				Scalar("lambda", Float(0.3)),
				Scalar("temp", Float(0.1)),
				Swept("phi", Floats(0.0, 0.5, 1.0, 1.5, 2.0, 2.5, 3.0, 3.5, 4.0, 4.5, 5.0, 5.5, 6.0)...),
			},
		},
		TestCase{
			ID:          2,
			Name:        "DOS_vs_lambda",
			Description: "DOS versus QD-MBS coupling strength |λ| with non-overlapping MBSs",
			Purpose:     "Verify how the DOS evolves with the QD-MBS coupling strength |λ| when the MBSs do not overlap.",
			Expected:    "The DOS peak broadens as |λ| increases.",
			Params: []Param{
				Scalar("em", Float(0.0)),
				Scalar("phi", Float(3.14159)),
				Scalar("temp", Float(0.1)),
				Swept("lambda", Floats(0.1, 0.3, 0.5, 0.7, 0.9, 1.1, 1.3)...),
			},
		},
		TestCase{
			ID:          3,
			Name:        "Conductance_components",
			Description: "Decomposition of the conductance into its components",
			Purpose:     "Separate the elastic tunneling (ET) and local Andreev reflection (LAR) contributions to the conductance.",
			Expected:    "The ET and LAR components are clearly distinguishable.",
			Params: []Param{
				Scalar("em", Float(0.0)),
				Scalar("lambda", Float(0.3)),
				Scalar("phi", Float(3.14159)),
				Scalar("temp", Float(0.1)),
			},
		},
	)
	if err != nil {
		panic("matrix: invalid built-in matrix: " + err.Error())
	}
	return r
}
