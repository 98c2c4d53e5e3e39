package services

import (
	"sort"

	"qiyana_splitledger/internal/models"

	"github.com/shopspring/decimal"
)

// participants returns every payer and beneficiary in the batch in
// ascending order; a user's position is their index in the cash-flow graph.
func participants(batch []models.Expense) []int64 {
	seen := make(map[int64]bool)
	ids := make([]int64, 0)
	for _, e := range batch {
		for _, id := range append([]int64{e.PayerID}, e.Beneficiaries...) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// cashFlowGraph returns graph[i][j], the total user j owes user i.
func cashFlowGraph(ids []int64, batch []models.Expense) [][]decimal.Decimal {
	index := make(map[int64]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	graph := make([][]decimal.Decimal, len(ids))
	for i := range graph {
		graph[i] = make([]decimal.Decimal, len(ids))
	}

	for _, e := range batch {
		share := e.Share()
		i := index[e.PayerID]
		for _, b := range e.Beneficiaries {
			j := index[b]
			if i != j {
				graph[i][j] = graph[i][j].Add(share)
			}
		}
	}
	return graph
}

// netBalances returns, per user, what others owe them minus what they owe
// others. Creditors are positive, debtors negative, and the total is zero.
func netBalances(graph [][]decimal.Decimal) []decimal.Decimal {
	net := make([]decimal.Decimal, len(graph))
	for p := range graph {
		for i := range graph {
			net[p] = net[p].Add(graph[p][i]).Sub(graph[i][p])
		}
	}
	return net
}

// minCashFlow repeatedly pays the largest creditor from the largest debtor
// until every balance is within epsilon of zero. Each step clears at least
// one user, so it ends after at most len(net)-1 transfers. net is consumed.
func minCashFlow(ids []int64, net []decimal.Decimal) []models.Transfer {
	transfers := make([]models.Transfer, 0)
	for step := 0; step < len(net); step++ {
		credit, debit := maxIndex(net), minIndex(net)
		if net[credit].Abs().LessThan(epsilon) && net[debit].Abs().LessThan(epsilon) {
			break
		}

		amount := decimal.Min(net[debit].Neg(), net[credit])
		net[credit] = net[credit].Sub(amount)
		net[debit] = net[debit].Add(amount)

		transfers = append(transfers, models.Transfer{
			DebtorID:   ids[debit],
			CreditorID: ids[credit],
			Amount:     amount.Round(2),
		})
	}
	return transfers
}

// PlanTransfers nets a batch of expenses into the fewest transfers that
// leave every participant with the same balance.
func PlanTransfers(batch []models.Expense) []models.Transfer {
	ids := participants(batch)
	if len(ids) == 0 {
		return nil
	}
	return minCashFlow(ids, netBalances(cashFlowGraph(ids, batch)))
}

func maxIndex(arr []decimal.Decimal) int {
	idx := 0
	for i := 1; i < len(arr); i++ {
		if arr[i].GreaterThan(arr[idx]) {
			idx = i
		}
	}
	return idx
}

func minIndex(arr []decimal.Decimal) int {
	idx := 0
	for i := 1; i < len(arr); i++ {
		if arr[i].LessThan(arr[idx]) {
			idx = i
		}
	}
	return idx
}
