package ddpg

import (
	"fmt"

	"github.com/samuelfneumann/ddpgportfolio/network"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// logEps keeps the entropy finite when a probability underflows to 0
const logEps float64 = 1e-8

// policy is the deterministic actor. An MLP over the observation and
// the previous non-cash allocation predicts the non-cash logits, and a
// single learnable cash bias is prepended as the cash logit. The
// allocation is the softmax of the logits.
type policy struct {
	net      network.NeuralNet
	cashBias *G.Node

	logits *G.Node
	probs  *G.Node

	logitsVal G.Value
	probsVal  G.Value

	learnables G.Nodes
	model      []G.ValueGrad
}

// newPolicy adds a policy reading from obs and prev to their graph
func newPolicy(obs, prev *G.Node, c Config, prefix string) (*policy,
	error) {
	g := obs.Graph()
	batch := obs.Shape()[0]
	nonCash := prev.Shape()[1]

	net, err := network.NewMLP([]*G.Node{obs, prev}, nonCash, g,
		c.ActorLayers, c.ActorBiases, c.InitWFn.InitWFn(),
		c.ActorActivations, prefix)
	if err != nil {
		return nil, fmt.Errorf("newPolicy: %w", err)
	}

	cashBias := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(1, 1),
		G.WithName(prefix+"CashBias"),
		G.WithInit(G.Zeroes()),
	)
	ones := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, 1),
		G.WithName(prefix+"Ones"),
		G.WithInit(G.Ones()),
	)

	cash, err := G.BroadcastHadamardProd(ones, cashBias, nil, []byte{0})
	if err != nil {
		return nil, fmt.Errorf("newPolicy: could not broadcast cash "+
			"bias: %w", err)
	}
	logits, err := G.Concat(1, cash, net.Prediction())
	if err != nil {
		return nil, fmt.Errorf("newPolicy: could not concatenate "+
			"logits: %w", err)
	}
	probs, err := softmax(logits)
	if err != nil {
		return nil, fmt.Errorf("newPolicy: %w", err)
	}

	p := &policy{
		net:      net,
		cashBias: cashBias,
		logits:   logits,
		probs:    probs,
	}
	G.Read(p.logits, &p.logitsVal)
	G.Read(p.probs, &p.probsVal)
	return p, nil
}

// Learnables returns the MLP weights followed by the cash bias
func (p *policy) Learnables() G.Nodes {
	if p.learnables == nil {
		learnables := make(G.Nodes, 0, len(p.net.Learnables())+1)
		learnables = append(learnables, p.net.Learnables()...)
		p.learnables = append(learnables, p.cashBias)
	}
	return p.learnables
}

// Model returns the learnables nodes with their gradients.
func (p *policy) Model() []G.ValueGrad {
	if p.model == nil {
		model := make([]G.ValueGrad, 0, len(p.Learnables()))
		for _, node := range p.Learnables() {
			model = append(model, node)
		}
		p.model = model
	}
	return p.model
}

// softmax computes the softmax over the columns of a matrix, subtracting
// the row maximum first
func softmax(logits *G.Node) (*G.Node, error) {
	max, err := G.Max(logits, 1)
	if err != nil {
		return nil, fmt.Errorf("softmax: could not compute max: %w", err)
	}
	exponent, err := G.BroadcastSub(logits, max, nil, []byte{1})
	if err != nil {
		return nil, fmt.Errorf("softmax: could not shift logits: %w", err)
	}
	exponent, err = G.Exp(exponent)
	if err != nil {
		return nil, fmt.Errorf("softmax: could not exponentiate: %w", err)
	}
	sum, err := G.Sum(exponent, 1)
	if err != nil {
		return nil, fmt.Errorf("softmax: could not normalise: %w", err)
	}
	return G.BroadcastHadamardDiv(exponent, sum, nil, []byte{1})
}

// entropy returns -mean_b sum_i p_bi log(p_bi) of a batch of
// distributions
func entropy(probs *G.Node) (*G.Node, error) {
	logProbs := G.Must(G.Add(probs, G.NewConstant(logEps)))
	logProbs = G.Must(G.Log(logProbs))
	plogp := G.Must(G.HadamardProd(probs, logProbs))
	perRow, err := G.Sum(plogp, 1)
	if err != nil {
		return nil, fmt.Errorf("entropy: %w", err)
	}
	return G.Neg(G.Must(G.Mean(perRow)))
}

// withCash rebuilds the full allocation of a batch of distributions from
// their non-cash columns, so that the cash column is 1 - sum(nonCash)
func withCash(probs *G.Node) (*G.Node, error) {
	batch, assets := probs.Shape()[0], probs.Shape()[1]

	nonCash, err := G.Slice(probs, nil, G.S(1, assets))
	if err != nil {
		return nil, fmt.Errorf("withCash: could not slice: %w", err)
	}
	nonCash, err = G.Reshape(nonCash, tensor.Shape{batch, assets - 1})
	if err != nil {
		return nil, fmt.Errorf("withCash: %w", err)
	}

	invested := G.Must(G.Sum(nonCash, 1))
	cash := G.Must(G.Sub(G.NewConstant(1.0), invested))
	cash, err = G.Reshape(cash, tensor.Shape{batch, 1})
	if err != nil {
		return nil, fmt.Errorf("withCash: %w", err)
	}

	return G.Concat(1, cash, nonCash)
}

// newCritic adds a critic Q(obs, prev, action) to the graph of its
// inputs. Both allocations are full (cash first).
func newCritic(obs, prev, action *G.Node, c Config,
	prefix string) (network.NeuralNet, error) {
	net, err := network.NewMLP([]*G.Node{obs, prev, action}, 1, obs.Graph(),
		c.CriticLayers, c.CriticBiases, c.InitWFn.InitWFn(),
		c.CriticActivations, prefix)
	if err != nil {
		return nil, fmt.Errorf("newCritic: %w", err)
	}
	return net, nil
}

// input adds a zero-initialised input matrix to g
func input(g *G.ExprGraph, name string, rows, cols int) *G.Node {
	return G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(rows, cols),
		G.WithName(name),
		G.WithInit(G.Zeroes()),
	)
}

// criticGraph trains the online critic
type criticGraph struct {
	g                 *G.ExprGraph
	obs, prev, action *G.Node
	target, weights   *G.Node
	net               network.NeuralNet

	qVal    G.Value
	tdVal   G.Value
	lossVal G.Value

	vm G.VM
}

func newCriticGraph(c Config, obsSize, assets int) (*criticGraph, error) {
	g := G.NewGraph()
	batch := c.BatchSize

	cg := &criticGraph{
		g:       g,
		obs:     input(g, "obs", batch, obsSize),
		prev:    input(g, "previous", batch, assets),
		action:  input(g, "action", batch, assets),
		target:  input(g, "target", batch, 1),
		weights: input(g, "isWeights", batch, 1),
	}

	var err error
	cg.net, err = newCritic(cg.obs, cg.prev, cg.action, c, "critic")
	if err != nil {
		return nil, fmt.Errorf("newCriticGraph: %w", err)
	}

	td := G.Must(G.Sub(cg.target, cg.net.Prediction()))
	loss := G.Must(G.Square(td))
	loss = G.Must(G.HadamardProd(cg.weights, loss))
	loss = G.Must(G.Mean(loss))
	G.Read(cg.net.Prediction(), &cg.qVal)
	G.Read(td, &cg.tdVal)
	G.Read(loss, &cg.lossVal)

	if _, err := G.Grad(loss, cg.net.Learnables()...); err != nil {
		return nil, fmt.Errorf("newCriticGraph: could not compute "+
			"gradient: %w", err)
	}

	cg.vm = G.NewTapeMachine(g, G.BindDualValues(cg.net.Learnables()...))
	return cg, nil
}

// actorGraph trains the online policy through a copy of the critic
type actorGraph struct {
	g         *G.ExprGraph
	obs, prev *G.Node
	prevFull  *G.Node
	weights   *G.Node
	policy    *policy
	critic    network.NeuralNet

	qVal       G.Value
	lossVal    G.Value
	entropyVal G.Value

	vm G.VM
}

func newActorGraph(c Config, obsSize, assets int,
	onlineCritic network.NeuralNet) (*actorGraph, error) {
	g := G.NewGraph()
	batch := c.BatchSize

	ag := &actorGraph{
		g:        g,
		obs:      input(g, "obs", batch, obsSize),
		prev:     input(g, "previousNonCash", batch, assets-1),
		prevFull: input(g, "previous", batch, assets),
		weights:  input(g, "isWeights", batch, 1),
	}

	var err error
	ag.policy, err = newPolicy(ag.obs, ag.prev, c, "actor")
	if err != nil {
		return nil, fmt.Errorf("newActorGraph: %w", err)
	}

	action := ag.policy.probs
	if c.ActorCashReconstruction {
		if action, err = withCash(action); err != nil {
			return nil, fmt.Errorf("newActorGraph: %w", err)
		}
	}

	ag.critic, err = onlineCritic.CloneWithInputTo(
		[]*G.Node{ag.obs, ag.prevFull, action}, g)
	if err != nil {
		return nil, fmt.Errorf("newActorGraph: could not clone "+
			"critic: %w", err)
	}

	ent, err := entropy(ag.policy.probs)
	if err != nil {
		return nil, fmt.Errorf("newActorGraph: %w", err)
	}
	G.Read(ent, &ag.entropyVal)

	q := ag.critic.Prediction()
	G.Read(q, &ag.qVal)

	var loss *G.Node
	if c.ActorPerSampleWeights {
		loss = G.Must(G.HadamardProd(ag.weights, q))
		loss = G.Must(G.Mean(loss))
	} else {
		// -mean(q) * mean(w)
		loss = G.Must(G.Mul(G.Must(G.Mean(q)), G.Must(G.Mean(ag.weights))))
	}
	loss = G.Must(G.Neg(loss))
	if c.EntropyCoef > 0 {
		bonus := G.Must(G.Mul(G.NewConstant(c.EntropyCoef), ent))
		loss = G.Must(G.Sub(loss, bonus))
	}
	G.Read(loss, &ag.lossVal)

	if _, err := G.Grad(loss, ag.policy.Learnables()...); err != nil {
		return nil, fmt.Errorf("newActorGraph: could not compute "+
			"gradient: %w", err)
	}

	ag.vm = G.NewTapeMachine(g, G.BindDualValues(ag.policy.Learnables()...))
	return ag, nil
}

// behaviourGraph runs the policy on a single state
type behaviourGraph struct {
	g         *G.ExprGraph
	obs, prev *G.Node
	policy    *policy
	vm        G.VM
}

func newBehaviourGraph(c Config, obsSize, assets int) (*behaviourGraph,
	error) {
	g := G.NewGraph()
	bg := &behaviourGraph{
		g:    g,
		obs:  input(g, "obs", 1, obsSize),
		prev: input(g, "previousNonCash", 1, assets-1),
	}

	var err error
	bg.policy, err = newPolicy(bg.obs, bg.prev, c, "actor")
	if err != nil {
		return nil, fmt.Errorf("newBehaviourGraph: %w", err)
	}

	bg.vm = G.NewTapeMachine(g)
	return bg, nil
}

// targetGraph evaluates Q_target(s', mu_target(s')) on a batch of next
// states
type targetGraph struct {
	g         *G.ExprGraph
	obs, prev *G.Node
	prevFull  *G.Node
	policy    *policy
	critic    network.NeuralNet
	vm        G.VM
}

func newTargetGraph(c Config, obsSize, assets int) (*targetGraph, error) {
	g := G.NewGraph()
	batch := c.BatchSize

	tg := &targetGraph{
		g:        g,
		obs:      input(g, "nextObs", batch, obsSize),
		prev:     input(g, "nextPreviousNonCash", batch, assets-1),
		prevFull: input(g, "nextPrevious", batch, assets),
	}

	var err error
	tg.policy, err = newPolicy(tg.obs, tg.prev, c, "targetActor")
	if err != nil {
		return nil, fmt.Errorf("newTargetGraph: %w", err)
	}
	tg.critic, err = newCritic(tg.obs, tg.prevFull, tg.policy.probs, c,
		"targetCritic")
	if err != nil {
		return nil, fmt.Errorf("newTargetGraph: %w", err)
	}

	tg.vm = G.NewTapeMachine(g)
	return tg, nil
}
