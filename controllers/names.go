package controllers

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	models "github.com/phillip/isaithondar-go/models"
)

// lookupNames resolves user ids for display. A failed lookup is logged and
// yields no names, so the response falls back to bare ids.
func lookupNames(c *gin.Context, env *Env, ids []primitive.ObjectID) map[primitive.ObjectID]string {
	names, err := env.Users.Names(c.Request.Context(), ids)
	if err != nil {
		env.Log.Warn("user name lookup failed", zap.String("path", c.FullPath()), zap.Error(err))
		return nil
	}
	return names
}

func nameExpenses(c *gin.Context, env *Env, xs []models.Expense) {
	ids := make([]primitive.ObjectID, 0, len(xs))
	for i := range xs {
		ids = append(ids, xs[i].PaidBy)
		if xs[i].ApprovedBy != nil {
			ids = append(ids, *xs[i].ApprovedBy)
		}
		if xs[i].ReimbursedBy != nil {
			ids = append(ids, *xs[i].ReimbursedBy)
		}
	}
	names := lookupNames(c, env, ids)
	for i := range xs {
		x := &xs[i]
		x.PaidByName = names[x.PaidBy]
		if x.ApprovedBy != nil {
			x.ApprovedByName = names[*x.ApprovedBy]
		}
		if x.ReimbursedBy != nil {
			x.ReimbursedByName = names[*x.ReimbursedBy]
		}
	}
}

func nameEvents(c *gin.Context, env *Env, views []models.EventView) {
	var ids []primitive.ObjectID
	for i := range views {
		ids = append(ids, views[i].CreatedBy)
		for _, m := range views[i].MembersJoined {
			ids = append(ids, m.User)
		}
	}
	names := lookupNames(c, env, ids)
	for i := range views {
		v := &views[i]
		v.CreatedByName = names[v.CreatedBy]
		for j := range v.MembersJoined {
			v.MembersJoined[j].Name = names[v.MembersJoined[j].User]
		}
	}
}
