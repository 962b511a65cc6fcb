package main

import "net/http"

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	standard := func(next http.Handler) http.Handler {
		return app.recoverPanic(app.logAndTraceRequest(next))
	}

	mux.Handle("POST /api/users/{userID}/plan-generations",
		http.HandlerFunc(app.generateRangePOST))
	mux.Handle("GET /api/generation-jobs/{jobID}",
		http.HandlerFunc(app.jobStatusGET))
	mux.Handle("POST /api/generation-jobs/{jobID}/cancel",
		http.HandlerFunc(app.jobCancelPOST))

	mux.Handle("GET /api/units/{unitID}",
		http.HandlerFunc(app.unitGET))
	mux.Handle("POST /api/units/{unitID}/regenerate",
		http.HandlerFunc(app.unitRegeneratePOST))
	mux.Handle("POST /api/units/{unitID}/complete",
		http.HandlerFunc(app.unitCompletePOST))
	mux.Handle("POST /api/users/{userID}/units",
		http.HandlerFunc(app.unitCreatePOST))
	mux.Handle("GET /api/users/{userID}/plans/{date}",
		http.HandlerFunc(app.currentForDateGET))

	mux.Handle("GET /api/lineages/{lineageID}/history",
		http.HandlerFunc(app.historyGET))
	mux.Handle("POST /api/lineages/{lineageID}/revert",
		http.HandlerFunc(app.revertPOST))

	mux.Handle("GET /api/healthy", http.HandlerFunc(app.healthy))

	return standard(mux)
}
