package preprocessing

import (
	"fmt"
	"strconv"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
)

// StandardScaler はscikit-learn互換の標準化スケーラー
// 学習時に保存された平均と標準偏差を使って、数値特徴量を平均0、標準偏差1に変換する
type StandardScaler struct {
	// Mean は各特徴量の平均値
	Mean []float64 `json:"mean"`

	// Scale は各特徴量の標準偏差
	Scale []float64 `json:"scale"`
}

// NewStandardScaler は保存済みの統計情報からStandardScalerを作成する
//
// パラメータ:
//   - mean: 各特徴量の平均値
//   - scale: 各特徴量の標準偏差（0は不可）
//
// 戻り値:
//   - *StandardScaler: 検証済みのStandardScaler
//   - error: 長さの不一致、非有限値、ゼロスケールの場合のArtifactError
//
// 使用例:
//
//	scaler, err := preprocessing.NewStandardScaler([]float64{5000, 35}, []float64{1500, 8})
//	err = scaler.Transform(dst, []float64{6500, 31}) // dst = [1.0, -0.5]
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	s := &StandardScaler{Mean: mean, Scale: scale}
	if err := s.Validate(len(mean)); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate は特徴量数と統計情報の整合性を確認する
// scale == 0 はArtifactErrorとなる
func (s *StandardScaler) Validate(nFeatures int) error {
	if len(s.Mean) != nFeatures {
		return errors.NewArtifactErrorf("preprocessing.scaler.mean",
			"expected %d values (one per numerical feature), got %d", nFeatures, len(s.Mean))
	}
	if len(s.Scale) != nFeatures {
		return errors.NewArtifactErrorf("preprocessing.scaler.scale",
			"expected %d values (one per numerical feature), got %d", nFeatures, len(s.Scale))
	}
	if err := errors.CheckAllFinite("preprocessing.scaler.mean", s.Mean); err != nil {
		return err
	}
	if err := errors.CheckAllFinite("preprocessing.scaler.scale", s.Scale); err != nil {
		return err
	}
	for j, sc := range s.Scale {
		if sc == 0 {
			return errors.NewArtifactError("preprocessing.scaler.scale["+strconv.Itoa(j)+"]", "scale must be non-zero")
		}
	}
	return nil
}

// Transform は学習済みの統計情報を使ってベクトルを標準化し、dstに書き込む
//
// パラメータ:
//   - dst: 書き込み先（len(x)以上の長さ）
//   - x: 変換する値（特徴量の宣言順）
//
// 戻り値:
//   - error: 次元が一致しない場合
func (s *StandardScaler) Transform(dst, x []float64) error {
	if len(x) != len(s.Mean) {
		return errors.NewDimensionError("StandardScaler.Transform", len(s.Mean), len(x))
	}
	if len(dst) < len(x) {
		return errors.NewDimensionError("StandardScaler.Transform", len(x), len(dst))
	}

	// 各要素を標準化
	for j, value := range x {
		dst[j] = (value - s.Mean[j]) / s.Scale[j]
	}
	return nil
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	return fmt.Sprintf("StandardScaler(n_features=%d)", len(s.Mean))
}
