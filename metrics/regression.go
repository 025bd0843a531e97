// Package metrics computes regression scores of predicted allocations
// against reference labels.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
)

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// 残差ベクトル r = yTrue - yPred を作り、MSE = r·r / n
	var r mat.VecDense
	r.SubVec(yTrue, yPred)
	return mat.Dot(&r, &r) / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
// yTrueの分散が0の場合はエラーを返す
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	yMean := stat.Mean(mat.Col(nil, 0, yTrue), nil)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		p := yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += (t - p) * (t - p)
	}
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// Report は回帰評価指標のまとめ
// JSONのキーはアーティファクトのperformance_metricsと同じ
type Report struct {
	MAE  float64 `json:"mae"`
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// Evaluate は4つの指標をまとめて計算する
func Evaluate(yTrue, yPred []float64) (Report, error) {
	if len(yTrue) == 0 {
		return Report{}, errors.Wrap(errors.ErrEmptyData, "metrics.Evaluate")
	}
	if len(yTrue) != len(yPred) {
		return Report{}, errors.NewDimensionError("metrics.Evaluate", len(yTrue), len(yPred))
	}

	t := mat.NewVecDense(len(yTrue), yTrue)
	p := mat.NewVecDense(len(yPred), yPred)

	var (
		r   Report
		err error
	)
	if r.MAE, err = MAE(t, p); err != nil {
		return Report{}, err
	}
	if r.MSE, err = MSE(t, p); err != nil {
		return Report{}, err
	}
	r.RMSE = math.Sqrt(r.MSE)
	if r.R2, err = R2Score(t, p); err != nil {
		return Report{}, err
	}
	return r, nil
}

// Delta は r - other を指標ごとに返す
func (r Report) Delta(other Report) Report {
	return Report{
		MAE:  r.MAE - other.MAE,
		MSE:  r.MSE - other.MSE,
		RMSE: r.RMSE - other.RMSE,
		R2:   r.R2 - other.R2,
	}
}

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.IsEmpty() {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.IsEmpty() || yPred.Len() != n {
		got := 0
		if !yPred.IsEmpty() {
			got = yPred.Len()
		}
		return 0, errors.NewDimensionError(op, n, got)
	}
	return n, nil
}
