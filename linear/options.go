package linear

// Option is a function that configures LinearRegression
type Option func(*LinearRegression)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithFeatureNames records the column order of X. Exported weights carry it
// so that a loaded model frames inference rows the same way.
func WithFeatureNames(names ...string) Option {
	return func(lr *LinearRegression) {
		lr.featureNames = append([]string(nil), names...)
	}
}

// WithTarget names the predicted column.
func WithTarget(name string) Option {
	return func(lr *LinearRegression) {
		lr.target = name
	}
}

// WithConditionLimit sets the condition number above which Fit emits an
// IllConditionedWarning.
func WithConditionLimit(limit float64) Option {
	return func(lr *LinearRegression) {
		lr.condLimit = limit
	}
}
