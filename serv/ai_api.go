package serv

import (
	"net/http"

	"github.com/treeql/treeql/rag"
)

type aiRequest struct {
	Collection string `json:"collection" validate:"required"`
	Message    string `json:"message" validate:"required"`
}

// conversationHandler answers a question over the collection's
// documents.
func (s *Service) conversationHandler(w http.ResponseWriter, r *http.Request) {
	chain, ok := s.requireChain(w)
	if !ok {
		return
	}
	var req aiRequest
	if !decodeValidated(w, r, &req) {
		return
	}

	answer, err := chain.Answer(r.Context(), req.Collection, req.Message)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"answer": answer})
}

// recallHandler returns the chunks closest to the question.
func (s *Service) recallHandler(w http.ResponseWriter, r *http.Request) {
	chain, ok := s.requireChain(w)
	if !ok {
		return
	}
	var req aiRequest
	if !decodeValidated(w, r, &req) {
		return
	}

	docs, err := chain.Recall(r.Context(), req.Collection, req.Message, rag.RecallTopK)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Service) requireChain(w http.ResponseWriter) (*rag.Chain, bool) {
	if s.chain == nil {
		renderJSON(w, http.StatusBadRequest, errEnvelope("vector store not configured"))
		return nil, false
	}
	return s.chain, true
}
