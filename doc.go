// Package allocgo turns household financial profiles into a split of
// savings between a fixed deposit and a savings account.
//
// The split comes from a gradient boosting regressor trained offline and
// exported as a JSON artifact. allocgo loads and validates the artifact once,
// then serves predictions from an immutable in-memory model.
//
// # Packages
//
//   - allocation: artifact loading, the Model, the hot-swappable Registry
//     and the file Watcher
//   - preprocessing: feature schema, standard scaling and one-hot encoding
//   - sklearn/tree, sklearn/ensemble: decision tree traversal and the
//     boosted ensemble with the allocation rule
//   - synth: the synthetic household dataset the model was trained on
//   - metrics: regression metrics for offline evaluation
//   - pkg/errors, pkg/log, pkg/config: error types, structured logging and
//     configuration
//
// # Quick Start
//
//	model, err := allocation.LoadFile("savings_allocation_model.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := model.Predict(preprocessing.Record{
//	    "monthly_income": 6200.0,
//	    "age":            41,
//	    "job_industry":   "Healthcare",
//	    // ...
//	})
//	fmt.Println(res.FixedDeposit, res.Savings) // e.g. 62 38
//
// The allocgo command wraps the same operations: validate, predict, serve,
// generate and evaluate.
package allocgo
