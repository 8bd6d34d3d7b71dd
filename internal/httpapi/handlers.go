package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unkn0wn-root/tagcache/internal/domain"
)

func (s *Server) popularQuestions(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	qs, err := s.q.PopularQuestions(r.Context(), limit)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toQuestions(qs))
}

func (s *Server) recentQuestions(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	qs, err := s.q.RecentQuestions(r.Context(), limit)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toQuestions(qs))
}

func (s *Server) popularSolutions(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	ss, err := s.q.PopularSolutions(r.Context(), limit)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toSolutions(ss))
}

func (s *Server) userProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.q.UserProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profileResource{User: toUser(p.User), Stats: p.Stats})
}

func (s *Server) trendingTags(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	tags, err := s.q.TrendingTags(r.Context(), limit)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if tags == nil {
		tags = []domain.TagCount{}
	}
	respondJSON(w, http.StatusOK, tags)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	qs, err := s.q.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toQuestions(qs))
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	u, err := s.repo.CreateUser(r.Context(), domain.User{Name: req.Name, Email: req.Email})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toUser(u))
}

func (s *Server) createQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	q, err := s.repo.CreateQuestion(r.Context(), domain.Question{
		UserID: req.UserID,
		Title:  req.Title,
		Body:   req.Body,
		Tags:   req.Tags,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toQuestion(q))
}

func (s *Server) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var req updateQuestionRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	q, err := s.repo.UpdateQuestion(r.Context(), domain.Question{
		ID:    chi.URLParam(r, "id"),
		Title: req.Title,
		Body:  req.Body,
		Tags:  req.Tags,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toQuestion(q))
}

func (s *Server) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteQuestion(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	a, err := s.repo.CreateAnswer(r.Context(), domain.Answer{
		QuestionID: chi.URLParam(r, "id"),
		UserID:     req.UserID,
		Body:       req.Body,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toAnswer(a))
}

func (s *Server) createSolution(w http.ResponseWriter, r *http.Request) {
	var req solutionRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	steps := make([]domain.Step, len(req.Steps))
	for i, st := range req.Steps {
		steps[i] = domain.Step{Position: i + 1, Title: st.Title, Description: st.Description}
	}
	sol, err := s.repo.CreateSolution(r.Context(), domain.Solution{
		UserID:      req.UserID,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Steps:       steps,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toSolution(sol))
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	c, err := s.repo.CreateComment(r.Context(), domain.Comment{
		CommentableType: req.CommentableType,
		CommentableID:   req.CommentableID,
		UserID:          req.UserID,
		Body:            req.Body,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (s *Server) react(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := s.decode(w, r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	got, err := s.repo.React(r.Context(), domain.Reaction{
		UserID:     req.UserID,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Like:       req.Type == "like",
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	res := reactionResource{}
	if got != nil {
		res.Active = true
		res.Type = "dislike"
		if got.Like {
			res.Type = "like"
		}
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) flushCache(w http.ResponseWriter, r *http.Request) {
	if err := s.q.Flush(r.Context()); err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
