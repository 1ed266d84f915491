package shell

//ShouldRegenerate reports whether next needs a fresh sample set.
func ShouldRegenerate(prev, next Settings) bool {
	return prev.Dataset != next.Dataset ||
		prev.Samples != next.Samples ||
		prev.Noise != next.Noise ||
		prev.Seed != next.Seed
}

//ShouldResplit reports whether the train/test boundary moves.
func ShouldResplit(prev, next Settings) bool {
	return ShouldRegenerate(prev, next) || prev.TrainSplit != next.TrainSplit
}

//ShouldRebuildModel reports whether the current model no longer fits the settings.
func ShouldRebuildModel(prev, next Settings) bool {
	if len(prev.Layers) != len(next.Layers) {
		return true
	}
	for i := range prev.Layers {
		if prev.Layers[i] != next.Layers[i] {
			return true
		}
	}
	return prev.Activation != next.Activation ||
		prev.LearningRate != next.LearningRate ||
		prev.L2 != next.L2 ||
		prev.Features != next.Features ||
		prev.ProblemType != next.ProblemType
}

//ShouldRestartTraining reports whether the running loop must be cancelled and, when
//next.Running is set, started again on the new state.
func ShouldRestartTraining(prev, next Settings) bool {
	return prev.Running != next.Running ||
		prev.BatchSize != next.BatchSize ||
		ShouldResplit(prev, next) ||
		ShouldRebuildModel(prev, next)
}
