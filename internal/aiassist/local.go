package aiassist

// LocalInstruction derives one positioning instruction from the client's
// vision metrics. Checks run in priority order: gross framing problems first,
// motion next, then the finer positioning risks.
func LocalInstruction(metrics map[string]float64) string {
	switch {
	case metrics["pose_confidence"] < 0.55:
		return "Step back and keep full torso in view."
	case metrics["framing_score"] < 0.6:
		return "Center the patient in frame."
	case metrics["motion_score"] > 0.55:
		return "Hold still briefly before exposure."
	case metrics["rotation_risk"] > 0.6:
		return "Reduce patient rotation slightly."
	case metrics["tilt_risk"] > 0.6:
		return "Straighten up to reduce lateral tilt."
	case metrics["chin_risk"] > 0.6:
		return "Lift the chin slightly."
	case metrics["scapula_risk"] > 0.6:
		return "Roll shoulders forward slightly."
	}
	return "Positioning looks good. Hold still."
}
