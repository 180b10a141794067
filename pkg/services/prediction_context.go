package services

import (
	"github.com/ekaya-inc/order-insight/pkg/models"
)

// BuildPredictionContext assembles what the prediction prompt is rendered
// from. It returns false when there is nothing to predict from: an empty set,
// a nil target, or a target that is not part of the set.
//
// Every record sharing the target's order number is excluded from the
// comparisons, and the list keeps the first models.MaxComparisons records in
// the set's order. No similarity ranking happens here; the model compares
// trend patterns itself.
func BuildPredictionContext(target *models.OrderRecord, all *models.RecordSet) (*models.PredictionContext, bool) {
	if target == nil || all.Len() == 0 {
		return nil, false
	}
	if _, ok := all.Find(target.OrderNumber); !ok {
		return nil, false
	}

	comparisons := make([]models.ComparisonRecord, 0, min(all.Len(), models.MaxComparisons))
	for _, rec := range all.Records {
		if rec.OrderNumber == target.OrderNumber {
			continue
		}
		if len(comparisons) == models.MaxComparisons {
			break
		}
		comparisons = append(comparisons, models.ComparisonRecord{
			OrderNumber: rec.OrderNumber,
			Comment:     rec.Comment,
			Trends:      rec.Trends,
		})
	}

	return &models.PredictionContext{
		TargetOrderNumber: target.OrderNumber,
		TargetAttributes:  target.Attributes,
		Target:            target.Trends,
		Comparisons:       comparisons,
		Cap:               models.MaxComparisons,
	}, true
}
